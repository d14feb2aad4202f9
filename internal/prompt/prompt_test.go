package prompt

import (
	"bytes"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestIsYes(t *testing.T) {
	assert := assert_.New(t)
	for _, s := range []string{"y", "Y", "yes", "YES", " Yes "} {
		assert.True(IsYes(s), s)
	}
	for _, s := range []string{"", "n", "no", "yep", "sure", "custom"} {
		assert.False(IsYes(s), s)
	}
}

func TestPrompter(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer
	p := New(strings.NewReader("y\n  my name  \nno\n"), &out)

	ok, err := p.Confirm("Proceed? [y/N]: ")
	assert.NoError(err)
	assert.True(ok)

	answer, err := p.Ask("Name: ")
	assert.NoError(err)
	assert.Equal("my name", answer)

	ok, err = p.Confirm("Again? [y/N]: ")
	assert.NoError(err)
	assert.False(ok)

	assert.Equal("Proceed? [y/N]: Name: Again? [y/N]: ", out.String())
}

func TestPrompter_EOF(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer

	p := New(strings.NewReader(""), &out)
	ok, err := p.Confirm("Proceed? [y/N]: ")
	assert.NoError(err)
	assert.False(ok)

	// Final line without a newline still counts
	p = New(strings.NewReader("yes"), &out)
	ok, err = p.Confirm("Proceed? [y/N]: ")
	assert.NoError(err)
	assert.True(ok)
}
