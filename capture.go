package restflight

import (
	"fmt"

	"github.com/restflight/restflight/pkg/pathfinder"
)

const (
	// CaptureJSON extracts values from JSON bodies.
	CaptureJSON CaptureSource = "JSON"

	// CaptureYAML extracts values from YAML bodies.
	CaptureYAML CaptureSource = "YAML"

	// CaptureXML extracts values from XML bodies.
	CaptureXML CaptureSource = "XML"
)

// CaptureSource describes data format a capture expression runs against.
type CaptureSource string

// CaptureRule names one value to extract from a successfully resolved
// response body. Captured values land in the service cache under Key and may
// be referenced by templates of later calls as {{.Key}}.
type CaptureRule struct {
	// Key is cache key the extracted value is saved under.
	Key string

	// Expression is source-specific path expression pointing at the value.
	Expression string

	// Source tells which format the body should be read as; JSON when empty.
	Source CaptureSource
}

// applyCaptures runs every capture rule of c over body, saving extracted
// values into the service cache. First extraction error stops the run.
func (s *Service) applyCaptures(c *Call, body []byte) error {
	for _, rule := range c.captures {
		finder := s.finderFor(rule.Source)
		if finder == nil {
			return fmt.Errorf("no pathfinder configured for capture source %q", rule.Source)
		}

		value, err := finder.Find(rule.Expression, body)
		if err != nil {
			return fmt.Errorf("capture %q: %w", rule.Key, err)
		}

		s.cache.Save(rule.Key, value)
		s.logger.WithField("key", rule.Key).Debug("captured response value")
	}

	return nil
}

func (s *Service) finderFor(source CaptureSource) pathfinder.PathFinder {
	switch source {
	case CaptureJSON, "":
		return s.jsonFinder
	case CaptureYAML:
		return s.yamlFinder
	case CaptureXML:
		return s.xmlFinder
	}

	return nil
}
