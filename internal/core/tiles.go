package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// TileDelimiter separates the segments of a raw response.
const TileDelimiter = ", "

// ParseTiles splits a raw response into its first four tiles. It also returns
// the number of non-empty segments found so callers can reject over-long
// responses. Fewer than four segments fails with InsufficientTiles.
func ParseTiles(raw string) ([]models.Tile, int, error) {
	var segments []string
	for _, seg := range strings.Split(raw, TileDelimiter) {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) < models.TilesPerRecord {
		return nil, len(segments), InvalidRecord(ReasonInsufficientTiles,
			"found %d of %d segments in %q", len(segments), models.TilesPerRecord, raw)
	}

	tiles := make([]models.Tile, models.TilesPerRecord)
	for i, seg := range segments[:models.TilesPerRecord] {
		emoji, phrase := SplitEmoji(seg)
		if phrase == "" {
			return nil, len(segments), InvalidRecord(ReasonEmptyPhrase, "segment %d %q has no phrase", i+1, seg)
		}
		tiles[i] = models.Tile{
			Emoji:  emoji,
			Words:  phrase,
			TileID: fmt.Sprintf("tile_%d", i+1),
		}
	}
	return tiles, len(segments), nil
}

// SplitEmoji separates one segment into its emoji and phrase. The emoji is the
// first extended grapheme cluster holding a non-ASCII symbol, an enclosing mark
// or the emoji presentation selector U+FE0F, so ZWJ sequences, skin tones,
// flags, keycaps and selector-styled letters like ℹ️ stay whole. The cluster is
// removed once; the rest, whitespace-collapsed, is the phrase. Segments without
// such a cluster get the fallback emoji and keep their full text.
func SplitEmoji(segment string) (emoji, phrase string) {
	g := uniseg.NewGraphemes(segment)
	for g.Next() {
		cluster := g.Str()
		if !isEmojiCluster(cluster) {
			continue
		}
		start, end := g.Positions()
		return cluster, collapseSpace(segment[:start] + " " + segment[end:])
	}
	return models.FallbackEmoji, collapseSpace(segment)
}

const emojiPresentation = '\uFE0F'

func isEmojiCluster(cluster string) bool {
	for _, r := range cluster {
		if r <= unicode.MaxASCII {
			continue
		}
		if r == emojiPresentation || unicode.IsSymbol(r) || unicode.Is(unicode.Me, r) {
			return true
		}
	}
	return false
}
