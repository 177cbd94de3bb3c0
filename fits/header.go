package fits

import (
	"fmt"
	"io"

	"github.com/lumensky/starcat/errs"
)

// Header is an ordered list of cards with keyword lookup. Repeated keywords
// (COMMENT, HISTORY, ALIAS and the like) are permitted; lookup returns the
// first occurrence and GetAll every occurrence.
type Header struct {
	cards []Card
}

// NewHeader creates an empty header.
func NewHeader() *Header {
	return &Header{}
}

// Append adds a card at the end, regardless of existing keys.
func (h *Header) Append(key string, value any, comment string) {
	h.cards = append(h.cards, Card{Key: key, Value: value, Comment: comment})
}

// Set replaces the first card with the given key, or appends one.
func (h *Header) Set(key string, value any, comment string) {
	for i := range h.cards {
		if h.cards[i].Key == key {
			h.cards[i].Value = value
			if comment != "" {
				h.cards[i].Comment = comment
			}

			return
		}
	}
	h.Append(key, value, comment)
}

// AppendComment adds a COMMENT card.
func (h *Header) AppendComment(text string) {
	h.cards = append(h.cards, Card{Key: "COMMENT", Comment: text})
}

// Cards returns the cards in order.
func (h *Header) Cards() []Card { return h.cards }

// Has reports whether a card with the key exists.
func (h *Header) Has(key string) bool {
	_, ok := h.find(key)

	return ok
}

func (h *Header) find(key string) (Card, bool) {
	for _, c := range h.cards {
		if c.Key == key {
			return c, true
		}
	}

	return Card{}, false
}

// GetAll returns the values of every card with the given key, in order.
func (h *Header) GetAll(key string) []any {
	var out []any
	for _, c := range h.cards {
		if c.Key == key {
			out = append(out, c.Value)
		}
	}

	return out
}

// GetInt returns an integer-valued card.
func (h *Header) GetInt(key string) (int64, bool) {
	c, ok := h.find(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// GetBool returns a logical-valued card.
func (h *Header) GetBool(key string) (bool, bool) {
	c, ok := h.find(key)
	if !ok {
		return false, false
	}
	b, ok := c.Value.(bool)

	return b, ok
}

// GetString returns a string-valued card.
func (h *Header) GetString(key string) (string, bool) {
	c, ok := h.find(key)
	if !ok {
		return "", false
	}
	s, ok := c.Value.(string)

	return s, ok
}

// GetFloat returns a floating-valued card, promoting integer cards.
func (h *Header) GetFloat(key string) (float64, bool) {
	c, ok := h.find(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Bytes renders the header, END card included, padded with blank cards to a
// whole number of blocks.
func (h *Header) Bytes() ([]byte, error) {
	nCards := len(h.cards) + 1
	nBlocks := (nCards + cardsPerBlock - 1) / cardsPerBlock
	out := make([]byte, 0, nBlocks*BlockSize)

	for _, c := range h.cards {
		raw, err := c.format()
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	end, err := Card{Key: "END"}.format()
	if err != nil {
		return nil, err
	}
	out = append(out, end...)

	for len(out)%BlockSize != 0 {
		blank := [CardSize]byte{}
		for i := range blank {
			blank[i] = ' '
		}
		out = append(out, blank[:]...)
	}

	return out, nil
}

// ReadHeader reads whole blocks from r until the END card, returning the
// parsed header.
func ReadHeader(r io.Reader) (*Header, error) {
	h := NewHeader()
	block := make([]byte, BlockSize)
	for first := true; ; first = false {
		if _, err := io.ReadFull(r, block); err != nil {
			if first && err == io.EOF {
				// Clean end of stream between HDUs.
				return nil, io.EOF
			}

			return nil, fmt.Errorf("%w: reading header block: %v", errs.ErrInvalidHeader, err)
		}
		for i := 0; i < cardsPerBlock; i++ {
			card, err := parseCard(block[i*CardSize : (i+1)*CardSize])
			if err != nil {
				return nil, err
			}
			if card.Key == "END" {
				return h, nil
			}
			if card.Key == "" && card.Value == nil && card.Comment == "" {
				continue
			}
			h.cards = append(h.cards, card)
		}
	}
}
