package lang

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Tag is a BCP-47 language tag understood by the speech services.
type Tag string

const (
	Russian Tag = "ru-RU"
	English Tag = "en-US"
)

type entry struct {
	display  string
	voice    string
	opposite Tag
}

// table is the whole language model: exactly two entries, each pointing at the other.
var table = map[Tag]entry{
	Russian: {display: "Русский", voice: "alena", opposite: English},
	English: {display: "English", voice: "john", opposite: Russian},
}

// Parse accepts a tag case-insensitively ("ru-ru", "EN-US").
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	for t := range table {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q (want one of %s)", s, strings.Join(Names(), ", "))
}

// Supported returns the known tags in stable order.
func Supported() []Tag {
	tags := lo.Keys(table)
	sort.Slice(tags, func(i, j int) bool { return tags[i] > tags[j] })
	return tags
}

func Names() []string {
	return lo.Map(Supported(), func(t Tag, _ int) string { return string(t) })
}

func (t Tag) Valid() bool {
	_, ok := table[t]
	return ok
}

// Target is the language a clip in t is translated into.
func (t Tag) Target() Tag { return table[t].opposite }

// DisplayName is the human-readable name used in prompts and output names.
func (t Tag) DisplayName() string { return table[t].display }

// Voice is the synthesis voice for t.
func (t Tag) Voice() string { return table[t].voice }

// TranslationPrompt is the system instruction asking an LLM to translate into t.
func (t Tag) TranslationPrompt() string {
	return fmt.Sprintf("Переведи текст на %s, сохрани смысл и естественность.", t.DisplayName())
}

func (t Tag) String() string { return string(t) }
