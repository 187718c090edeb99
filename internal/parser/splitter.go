package parser

import "strings"

const handPrefix = "PokerStars Hand #"

// SplitHands splits a raw session file into individual hand blocks.
// Each block starts with "PokerStars Hand #". Line endings are normalised
// to \n and a UTF-8 BOM is stripped before splitting. Blocks that do not
// start with the hand prefix (preamble, partial writes) are discarded.
func SplitHands(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks []string
	for {
		start := strings.Index(text, handPrefix)
		if start < 0 {
			break
		}
		text = text[start:]
		end := strings.Index(text[len(handPrefix):], handPrefix)
		var block string
		if end < 0 {
			block = text
			text = ""
		} else {
			block = text[:len(handPrefix)+end]
			text = text[len(handPrefix)+end:]
		}
		if b := strings.TrimSpace(block); b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}
