// Package messages renders congratulation texts for date events.
package messages

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/quantumlife/contactbot/internal/core"
)

// Placeholder is replaced by the salutation in every template.
const Placeholder = "{GIVEN_NAME}"

// Picker chooses an index in [0, n)
type Picker interface {
	NextIndex(n int) int
}

// RandomPicker draws uniformly and independently on every call
type RandomPicker struct{}

// NextIndex returns a random index in [0, n)
func (RandomPicker) NextIndex(n int) int {
	return rand.IntN(n)
}

// Set holds the body and subject templates of one date type
type Set struct {
	Bodies   []string
	Subjects []string
}

// Templates renders bodies and subjects per date type
type Templates struct {
	sets   map[core.DateType]Set
	picker Picker
}

// New creates templates over sets. A nil picker uses RandomPicker.
func New(sets map[core.DateType]Set, picker Picker) *Templates {
	if picker == nil {
		picker = RandomPicker{}
	}
	return &Templates{sets: sets, picker: picker}
}

// Default returns the built-in birthday and anniversary templates
func Default(picker Picker) *Templates {
	return New(map[core.DateType]Set{
		core.DateBirthday:    {Bodies: birthdayBodies, Subjects: birthdaySubjects},
		core.DateAnniversary: {Bodies: anniversaryBodies, Subjects: anniversarySubjects},
	}, picker)
}

// Validate checks that every known date type has bodies and subjects
func (t *Templates) Validate() error {
	for _, dt := range []core.DateType{core.DateBirthday, core.DateAnniversary} {
		set := t.sets[dt]
		if len(set.Bodies) == 0 {
			return fmt.Errorf("%w: %s bodies", core.ErrNoTemplates, dt)
		}
		if len(set.Subjects) == 0 {
			return fmt.Errorf("%w: %s subjects", core.ErrNoTemplates, dt)
		}
	}
	return nil
}

// Body renders a message body for dt addressed to salutation
func (t *Templates) Body(dt core.DateType, salutation string) (string, error) {
	return t.render(t.sets[dt].Bodies, dt, "bodies", salutation)
}

// Subject renders an email subject for dt addressed to salutation
func (t *Templates) Subject(dt core.DateType, salutation string) (string, error) {
	return t.render(t.sets[dt].Subjects, dt, "subjects", salutation)
}

func (t *Templates) render(list []string, dt core.DateType, kind, salutation string) (string, error) {
	if len(list) == 0 {
		return "", fmt.Errorf("%w: %s %s", core.ErrNoTemplates, dt, kind)
	}
	tmpl := list[t.picker.NextIndex(len(list))]
	return strings.ReplaceAll(tmpl, Placeholder, salutation), nil
}
