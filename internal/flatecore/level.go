package flatecore

// LevelParams holds the tuning knobs for one compression level, in the
// same shape klauspost's compressionLevel table uses: a held match at
// least Good long cuts the next search to a quarter of Chain, a held
// match shorter than Lazy is still compared against the next position's
// match (and dropped for it if that one is longer), Nice is the length at which the
// search stops early because the match is "good enough", and Chain caps
// how many hash-chain links get walked per search.
type LevelParams struct {
	Good  int
	Lazy  int
	Nice  int
	Chain int
}

// levels indexes by compression level 0..9. Entry 0 is left empty and is
// never returned, since LevelParamsFor clamps levels below 1 to level 1;
// store-only and Huffman-only output are BlockWriter modes, not levels.
var levels = [10]LevelParams{
	0: {},
	1: {Good: 4, Lazy: 4, Nice: 8, Chain: 4},
	2: {Good: 4, Lazy: 5, Nice: 16, Chain: 8},
	3: {Good: 4, Lazy: 6, Nice: 32, Chain: 32},
	4: {Good: 4, Lazy: 4, Nice: 16, Chain: 16},
	5: {Good: 8, Lazy: 16, Nice: 32, Chain: 32},
	6: {Good: 8, Lazy: 16, Nice: 128, Chain: 128},
	7: {Good: 8, Lazy: 32, Nice: 128, Chain: 256},
	8: {Good: 32, Lazy: 128, Nice: 258, Chain: 1024},
	9: {Good: 32, Lazy: 258, Nice: 258, Chain: 4096},
}

// LevelParamsFor returns the tuning parameters for the given level,
// clamping to the nearest valid entry for any level outside 1..9.
func LevelParamsFor(level int) LevelParams {
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}
	return levels[level]
}
