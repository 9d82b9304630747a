// Package schema holds services that validate response bodies against JSON schemas.
//
// Package contains two flavors of JSON schema validators:
//
// raw - which accepts JSON schema string,
// reference - which accepts reference to JSON schema (URL or OS path),
//
//	RawXGValidator has ability to validate document against JSON schema string written with draft v4, v6 or v7.
//	ReferenceXGValidator has ability to validate document against JSON schema passed as URL or OS path written with draft v4, v6 or v7.
//	RawQIValidator has ability to validate document against JSON schema string written with draft 7 & 2019-09.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/qri-io/jsonschema"
	jschema "github.com/xeipuuv/gojsonschema"

	"github.com/restflight/restflight/pkg/httpctx"
	"github.com/restflight/restflight/pkg/osutils"
	v "github.com/restflight/restflight/pkg/validator"
)

// RawXGValidator is entity that has ability to validate data against JSON schema passed as string.
// xeipuuv/gojsonschema is used under the hood.
type RawXGValidator struct{}

// RawQIValidator is entity that has ability to validate data against JSON schema passed as string.
// qri-io/jsonschema is used under the hood.
type RawQIValidator struct{}

// ReferenceXGValidator is entity that has ability to validate data against JSON schema passed as reference.
// xeipuuv/gojsonschema is used under the hood.
type ReferenceXGValidator struct {
	fileValidator v.Validator
	urlValidator  v.Validator

	// schemasDir represents absolute path to JSON schemas directory.
	schemasDir string
}

func NewRawXGValidator() RawXGValidator {
	return RawXGValidator{}
}

func NewRawQIValidator() RawQIValidator {
	return RawQIValidator{}
}

// NewReferenceXGValidator creates new ReferenceXGValidator with provided services.
func NewReferenceXGValidator(schemasDir string, fileValidator, urlValidator v.Validator) ReferenceXGValidator {
	return ReferenceXGValidator{
		fileValidator: fileValidator,
		urlValidator:  urlValidator,
		schemasDir:    schemasDir,
	}
}

// NewDefaultReferenceXGValidator creates new ReferenceXGValidator with fixed services.
func NewDefaultReferenceXGValidator(schemasDir string) ReferenceXGValidator {
	return NewReferenceXGValidator(schemasDir, osutils.NewFileValidator(), httpctx.NewURLValidator())
}

// Validate validates document against jsonSchema.
// According to xeipuuv/gojsonschema library it covers JSON Schema draft v4, v6 & v7.
func (r RawXGValidator) Validate(document, jsonSchema string) error {
	result, err := jschema.Validate(jschema.NewStringLoader(jsonSchema), jschema.NewStringLoader(document))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errSum := ""
		for _, err := range result.Errors() {
			errSum += err.String()
		}

		return errors.New(errSum)
	}

	return nil
}

// Validate validates document against jsonSchema.
// According to library documentation it covers https://json-schema.org drafts 7 & 2019-09.
func (r RawQIValidator) Validate(document, jsonSchema string) error {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(jsonSchema), rs); err != nil {
		return err
	}

	errs, err := rs.ValidateBytes(context.Background(), []byte(document))
	if err != nil {
		return err
	}

	if len(errs) > 0 {
		var errStr string
		for _, e := range errs {
			errStr += e.Error() + " "
		}

		return errors.New(errStr)
	}

	return nil
}

// Validate validates document against JSON schema located in schemaPath.
// schemaPath may be URL or relative/full path to JSON schema on user OS.
func (r ReferenceXGValidator) Validate(document, schemaPath string) error {
	source, err := getSource(r.urlValidator, r.fileValidator, r.schemasDir, schemaPath)
	if err != nil {
		return err
	}

	result, err := jschema.Validate(jschema.NewReferenceLoader(source), jschema.NewStringLoader(document))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errSum := ""
		for _, err := range result.Errors() {
			errSum += err.String()
		}

		return errors.New(errSum)
	}

	return nil
}

// getSource accepts rawSource, validates it and returns valid source.
// Available sources are: file system OS path and URL.
func getSource(urlValidator, fileValidator v.Validator, schemasDir, rawSource string) (string, error) {
	if rawSource == "" {
		return rawSource, errors.New("provided rawSource should not be empty string")
	}

	errURL := urlValidator.Validate(rawSource)
	if errURL == nil { // is valid URL
		return rawSource, nil
	}

	var pth string

	if path.IsAbs(rawSource) {
		pth = rawSource
	} else {
		pth = path.Clean(path.Join(schemasDir, rawSource))
	}

	errPath := fileValidator.Validate(pth)
	if errPath == nil { // pth points at some resource in user OS
		return fmt.Sprintf("%s%s", "file://", pth), nil
	}

	return "", fmt.Errorf("%s isn't valid path to any resource on your OS, nor valid URL", rawSource)
}
