package pathfinder

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
)

// AntchfxXMLFinder represents implementation of XPath from https://github.com/antchfx/xmlquery.
type AntchfxXMLFinder struct{}

func NewAntchfxXMLFinder() AntchfxXMLFinder {
	return AntchfxXMLFinder{}
}

// Find obtains data from b according to given XPath expr.
func (a AntchfxXMLFinder) Find(expr string, b []byte) (any, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, err
	}

	if len(nodes) == 1 {
		return any(nodes[0].InnerText()), nil
	}

	if len(nodes) > 1 {
		results := make([]any, 0, len(nodes))
		for _, node := range nodes {
			results = append(results, node.InnerText())
		}

		return results, nil
	}

	return nil, fmt.Errorf("could not find %s in given XML bytes", expr)
}
