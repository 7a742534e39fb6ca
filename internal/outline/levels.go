package outline

import "github.com/dgallion1/docsift/internal/doctree"

// levelMap assigns heading levels to the styles of one document. It is built
// fresh for every document and never shared.
type levelMap map[style]doctree.HeadingLevel

// newLevelMap maps ranked styles, most prominent first, to H1, H2 and H3.
// Styles beyond the third collapse into H3.
func newLevelMap(ranked []style) levelMap {
	m := make(levelMap, len(ranked))
	for i, s := range ranked {
		switch i {
		case 0:
			m[s] = doctree.LevelH1
		case 1:
			m[s] = doctree.LevelH2
		default:
			m[s] = doctree.LevelH3
		}
	}
	return m
}
