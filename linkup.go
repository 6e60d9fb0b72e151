package cola

// linkUp installs rlps, produced while writing the terminal destination of
// a merge cascade, into the not-yet-visible array slot at installLevel (the
// source level of that same merge, one level shallower than where the
// RLPs were generated). Once installed, that slot is marked VISIBLE and
// LINKED so scans route through its RLPs to narrow their search window one
// level down.
func (idx *Index) linkUp(installLevel int, rlps []Tuple) error {
	m := idx.meta.snapshot()
	max := arraysAtLevel(installLevel)

	arrnum := -1
	for a := 0; a < max; a++ {
		if !m[installLevel][a].isVisible() {
			arrnum = a
		}
	}
	if arrnum < 0 {
		return capacityExhausted("linkUp: no not-yet-visible array at level %d to receive look-ahead pointers", installLevel)
	}

	dw, err := idx.newDestWriter(installLevel, arrnum, m[installLevel][arrnum].isExists(), false)
	if err != nil {
		return err
	}
	for _, rlp := range rlps {
		if err := dw.write(rlp); err != nil {
			return err
		}
	}
	if err := dw.finish(); err != nil {
		return err
	}

	return idx.meta.writeThrough(idx.store, func(m *matrix) {
		m[installLevel][arrnum] = m[installLevel][arrnum].with(flagVisible | flagLinked | flagExists)
	})
}
