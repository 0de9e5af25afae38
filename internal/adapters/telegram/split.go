package telegram

import "strings"

// MessageLimit задаёт максимальную длину сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage делит текст на части не длиннее limit символов. Сначала ищется
// граница абзаца, затем перевод строки; строка без переводов режется по лимиту.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	rest := []rune(strings.TrimSpace(text))
	var parts []string
	for len(rest) > 0 {
		if len(rest) <= limit {
			parts = append(parts, string(rest))
			break
		}
		cut := cutPoint(rest, limit)
		if chunk := strings.TrimRight(string(rest[:cut]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		rest = rest[cut:]
		for len(rest) > 0 && rest[0] == '\n' {
			rest = rest[1:]
		}
	}
	return parts
}

func cutPoint(runes []rune, limit int) int {
	for i := limit - 1; i > 1; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i - 1
		}
	}
	for i := limit - 1; i > 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return safeCut(runes, limit)
}

// safeCut не даёт жёсткому разрезу попасть внутрь HTML-тега или сущности.
func safeCut(runes []rune, limit int) int {
	cut := limit
	if open := lastUnclosed(runes[:limit], '<', '>'); open > 0 && open < cut {
		cut = open
	}
	if amp := lastUnclosed(runes[:limit], '&', ';'); amp > 0 && amp < cut {
		cut = amp
	}
	return cut
}

// lastUnclosed возвращает позицию последнего open, за которым нет closing, или -1.
func lastUnclosed(runes []rune, open, closing rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		switch runes[i] {
		case closing:
			return -1
		case open:
			return i
		}
	}
	return -1
}
