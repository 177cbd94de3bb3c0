package fits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lumensky/starcat/errs"
)

const (
	// CardSize is the fixed length of one header card.
	CardSize = 80
	// BlockSize is the FITS block length; headers and data are padded to it.
	BlockSize = 2880
	cardsPerBlock = BlockSize / CardSize
)

// Card is one 80-character header record. Value is nil (comment/blank card),
// bool, int64, float64 or string.
type Card struct {
	Key     string
	Value   any
	Comment string
}

// format renders the card as exactly CardSize bytes.
//
// Numeric and boolean values are right-justified in columns 11-30 per the
// standard's fixed format; strings are left-justified starting at column 11.
// Keywords longer than 8 characters use the ESO HIERARCH convention. Comments
// that would push the card past 80 characters are truncated, not rejected.
func (c Card) format() ([]byte, error) {
	if len(c.Key) > 8 {
		return c.formatHierarch()
	}

	var sb strings.Builder
	sb.Grow(CardSize)
	sb.WriteString(c.Key)
	for sb.Len() < 8 {
		sb.WriteByte(' ')
	}

	if c.Value == nil && c.Comment != "" && (c.Key == "COMMENT" || c.Key == "HISTORY" || c.Key == "") {
		room := CardSize - sb.Len()
		sb.WriteString(c.Comment[:min(len(c.Comment), room)])
	} else if c.Value != nil {
		sb.WriteString("= ")
		body, err := formatValue(c.Value)
		if err != nil {
			return nil, fmt.Errorf("keyword %q: %w", c.Key, err)
		}
		sb.WriteString(body)
		appendComment(&sb, c.Comment)
	}

	return padCard(&sb, c.Key)
}

// formatHierarch renders "HIERARCH <key> = <value>" for keywords the 8-byte
// field cannot hold, e.g. AFW_TABLE_VERSION.
func (c Card) formatHierarch() ([]byte, error) {
	if c.Value == nil {
		return nil, fmt.Errorf("%w: keyword %q longer than 8 characters", errs.ErrInvalidHeader, c.Key)
	}
	body, err := formatValue(c.Value)
	if err != nil {
		return nil, fmt.Errorf("keyword %q: %w", c.Key, err)
	}

	var sb strings.Builder
	sb.Grow(CardSize)
	sb.WriteString("HIERARCH ")
	sb.WriteString(c.Key)
	sb.WriteString(" = ")
	sb.WriteString(strings.TrimLeft(body, " "))
	appendComment(&sb, c.Comment)

	return padCard(&sb, c.Key)
}

// appendComment adds " / comment" with whatever room remains on the card,
// dropping it entirely when fewer than four characters are left.
func appendComment(sb *strings.Builder, comment string) {
	room := CardSize - sb.Len() - 3
	if comment == "" || room < 1 {
		return
	}
	sb.WriteString(" / ")
	sb.WriteString(comment[:min(len(comment), room)])
}

func padCard(sb *strings.Builder, key string) ([]byte, error) {
	if sb.Len() > CardSize {
		return nil, fmt.Errorf("%w: card %q overflows 80 characters", errs.ErrInvalidHeader, key)
	}
	out := make([]byte, CardSize)
	copy(out, sb.String())
	for i := sb.Len(); i < CardSize; i++ {
		out[i] = ' '
	}

	return out, nil
}

func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return fmt.Sprintf("%20s", "T"), nil
		}

		return fmt.Sprintf("%20s", "F"), nil
	case int:
		return fmt.Sprintf("%20d", x), nil
	case int64:
		return fmt.Sprintf("%20d", x), nil
	case float64:
		return fmt.Sprintf("%20s", strconv.FormatFloat(x, 'G', -1, 64)), nil
	case string:
		quoted := "'" + strings.ReplaceAll(x, "'", "''") + "'"
		if len(quoted) < 10 {
			// Short strings are padded to the minimum 8-char value field.
			quoted = quoted[:len(quoted)-1] + strings.Repeat(" ", 10-len(quoted)) + "'"
		}

		return quoted, nil
	default:
		return "", fmt.Errorf("%w: unsupported header value type %T", errs.ErrInvalidHeader, v)
	}
}

// parseCard decodes one raw 80-byte record. Comment-only and blank cards
// come back with a nil Value. HIERARCH cards yield the long keyword.
func parseCard(raw []byte) (Card, error) {
	if len(raw) != CardSize {
		return Card{}, fmt.Errorf("%w: card is %d bytes", errs.ErrInvalidHeader, len(raw))
	}
	s := string(raw)
	card := Card{Key: strings.TrimRight(s[:8], " ")}

	if card.Key == "HIERARCH" {
		if eq := strings.IndexByte(s, '='); eq >= 0 {
			card.Key = strings.TrimSpace(s[8:eq])

			return parseCardValue(card, s[eq+1:])
		}
	}

	if s[8:10] != "= " {
		card.Comment = strings.TrimRight(s[8:], " ")

		return card, nil
	}

	return parseCardValue(card, s[10:])
}

func parseCardValue(card Card, body string) (Card, error) {
	if strings.HasPrefix(strings.TrimLeft(body, " "), "'") {
		val, rest, err := parseQuoted(strings.TrimLeft(body, " "))
		if err != nil {
			return Card{}, fmt.Errorf("keyword %q: %w", card.Key, err)
		}
		card.Value = val
		if i := strings.Index(rest, "/"); i >= 0 {
			card.Comment = strings.TrimSpace(rest[i+1:])
		}

		return card, nil
	}

	if i := strings.Index(body, "/"); i >= 0 {
		card.Comment = strings.TrimSpace(body[i+1:])
		body = body[:i]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return card, nil
	}

	switch {
	case body == "T":
		card.Value = true
	case body == "F":
		card.Value = false
	case strings.ContainsAny(body, ".ED") && body != "E" && body != "D":
		f, err := strconv.ParseFloat(strings.Replace(body, "D", "E", 1), 64)
		if err != nil {
			return Card{}, fmt.Errorf("%w: keyword %q value %q", errs.ErrInvalidHeader, card.Key, body)
		}
		card.Value = f
	default:
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return Card{}, fmt.Errorf("%w: keyword %q value %q", errs.ErrInvalidHeader, card.Key, body)
		}
		card.Value = n
	}

	return card, nil
}

// parseQuoted consumes a FITS quoted string where '' escapes a quote,
// returning the value and the unconsumed remainder.
func parseQuoted(s string) (string, string, error) {
	if len(s) == 0 || s[0] != '\'' {
		return "", "", fmt.Errorf("%w: string value does not start with a quote", errs.ErrInvalidHeader)
	}
	var sb strings.Builder
	i := 1
	for i < len(s) {
		if s[i] != '\'' {
			sb.WriteByte(s[i])
			i++

			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			sb.WriteByte('\'')
			i += 2

			continue
		}

		return strings.TrimRight(sb.String(), " "), s[i+1:], nil
	}

	return "", "", fmt.Errorf("%w: unterminated string value", errs.ErrInvalidHeader)
}
