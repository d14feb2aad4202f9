package batch

import (
	"strings"

	"github.com/alanbriolat/channel-archiver"
	"github.com/alanbriolat/channel-archiver/job"
)

// An Asker returns the operator's answer to a question.
type Asker func(question string) (string, error)

// AskNaming builds a Decider that asks the operator how to name each file: "y" uses the title, "n" uses the content
// ID, and "custom" asks for a name. Anything else keeps the defaults.
func AskNaming(ask Asker) Decider {
	return func(j job.Job, defaults channel_archiver.Naming) (channel_archiver.Naming, error) {
		naming := defaults
		choice, err := ask("Use video title as filename? (y/n/custom): ")
		if err != nil {
			return naming, err
		}
		switch strings.ToLower(choice) {
		case "y", "yes":
			naming.UseTitle = true
		case "n", "no":
			naming.UseTitle = false
		case "custom":
			name, err := ask("Enter custom filename (without extension): ")
			if err != nil {
				return naming, err
			}
			naming.CustomName = name
		}
		return naming, nil
	}
}
