package report

import (
	"regexp"
	"strings"
	"unicode"

	"gm-dashboard/internal/domain"
)

var (
	headingPattern = regexp.MustCompile(`(?i)^(?:[^\w]*\s*)?(Done|Good|More|Next)(?:\s*[:：]\s*(.*))?$`)
	bulletPattern  = regexp.MustCompile(`^([-*・•●◦]|\d+\.)[\s\p{Zs}]*(.*)$`)
)

// ParseSections раскладывает текст отчёта по разделам Done/Good/More/Next.
// Строки до первого заголовка отбрасываются.
func ParseSections(text string) domain.SectionMap {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	buffers := make(map[domain.SectionKey][]string, len(domain.SectionKeys))
	var current domain.SectionKey

	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			current = domain.SectionKey(strings.ToLower(m[1]))
			if inline := strings.TrimSpace(m[2]); inline != "" {
				buffers[current] = append(buffers[current], inline)
			}
			continue
		}
		if current == "" {
			continue
		}
		buffers[current] = append(buffers[current], line)
	}

	sections := domain.NewSectionMap()
	for _, key := range domain.SectionKeys {
		sections[key] = collectEntries(buffers[key])
	}
	return sections
}

func collectEntries(raw []string) []string {
	items := []string{}
	var (
		item    strings.Builder
		pending bool
	)
	flush := func() {
		if !pending {
			return
		}
		if entry := collapseSpaces(item.String()); entry != "" {
			items = append(items, entry)
		}
		item.Reset()
		pending = false
	}

	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		unquoted := strings.TrimRightFunc(strings.TrimLeftFunc(line, isQuoteOrSpace), unicode.IsSpace)
		if m := bulletPattern.FindStringSubmatch(unquoted); m != nil && m[2] != "" {
			flush()
			item.WriteString(strings.TrimSpace(m[2]))
			pending = true
			continue
		}
		clean := strings.TrimSpace(unquoted)
		if clean == "" {
			continue
		}
		if pending {
			item.WriteByte(' ')
		}
		item.WriteString(clean)
		pending = true
	}
	flush()
	return items
}

// isQuoteOrSpace срезает цитирование и отступы, включая U+3000 и NBSP.
func isQuoteOrSpace(r rune) bool {
	return r == '>' || unicode.IsSpace(r)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
