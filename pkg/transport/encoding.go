package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/restflight/restflight/pkg/serializer"
)

const (
	// EncodingNone describes request without encoded body; params go into query string.
	EncodingNone Encoding = ""

	// EncodingJSON describes request body serialized into JSON.
	EncodingJSON Encoding = "JSON"

	// EncodingYAML describes request body serialized into YAML.
	EncodingYAML Encoding = "YAML"

	// EncodingXML describes request body serialized into XML.
	EncodingXML Encoding = "XML"

	// EncodingForm describes params encoded as application/x-www-form-urlencoded body.
	EncodingForm Encoding = "FORM"

	// EncodingMultipart describes params and file parts encoded as multipart/form-data body.
	EncodingMultipart Encoding = "MULTIPART"
)

// Encoding describes the way request params and body are encoded on the wire.
type Encoding string

// IsKnown tells whether encoding belongs to the closed set of supported encodings.
func (e Encoding) IsKnown() bool {
	switch e {
	case EncodingNone, EncodingJSON, EncodingYAML, EncodingXML, EncodingForm, EncodingMultipart:
		return true
	}

	return false
}

// FilePart describes one file attached to a multipart request.
type FilePart struct {
	// FieldName is multipart form field name.
	FieldName string

	// Path is OS path of the attached file.
	Path string

	// FileName overrides file name announced in the part; base of Path when empty.
	FileName string
}

// Request is wire-level description of one HTTP call handed over by the engine.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Params url.Values

	// Encoding tells how Params and Body are encoded.
	Encoding Encoding

	// Body is payload serialized according to Encoding; raw []byte and string pass through.
	Body any

	// FileParts are files attached to multipart requests.
	FileParts []FilePart

	// AcceptedStatusCodes is set of statuses which pass transport-level validation.
	// Empty set accepts every status.
	AcceptedStatusCodes []int
}

// Build constructs a cancellable transport request from r. Construction runs
// in the background: body encoding may require reading files from disk and may
// fail before any network activity begins. Exactly one of onReady/onFail is
// invoked, once.
func (s *Service) Build(r Request, onReady func(*Handle), onFail func(error)) {
	go func() {
		body, contentType, err := encodeBody(r)
		if err != nil {
			s.logger.WithError(err).WithField("url", r.URL).Debug("request build failed")
			onFail(err)
			return
		}

		target := r.URL
		if len(r.Params) > 0 && r.Encoding != EncodingForm && r.Encoding != EncodingMultipart {
			separator := "?"
			if strings.Contains(target, "?") {
				separator = "&"
			}

			target += separator + r.Params.Encode()
		}

		ctx, cancel := context.WithCancel(context.Background())

		req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
		if err != nil {
			cancel()
			onFail(fmt.Errorf("%w: %s", ErrEncoding, err.Error()))
			return
		}

		for name, values := range r.Header {
			for _, value := range values {
				req.Header.Add(name, value)
			}
		}

		if contentType != "" && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", contentType)
		}

		onReady(&Handle{req: req, cancel: cancel, accepted: r.AcceptedStatusCodes})
	}()
}

// encodeBody renders request body according to its encoding.
func encodeBody(r Request) (io.Reader, string, error) {
	switch r.Encoding {
	case EncodingNone:
		return passthroughBody(r.Body)

	case EncodingJSON:
		return serializedBody(serializer.NewJSON(), r.Body, "application/json")

	case EncodingYAML:
		return serializedBody(serializer.NewYAML(), r.Body, "application/x-yaml")

	case EncodingXML:
		return serializedBody(serializer.NewXML(), r.Body, "application/xml")

	case EncodingForm:
		return strings.NewReader(r.Params.Encode()), "application/x-www-form-urlencoded", nil

	case EncodingMultipart:
		return multipartBody(r)
	}

	return nil, "", fmt.Errorf("%w: unknown encoding %s", ErrEncoding, r.Encoding)
}

// passthroughBody accepts raw payloads which need no serialization.
func passthroughBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	}

	return nil, "", fmt.Errorf("%w: body of type %T requires an encoding", ErrEncoding, body)
}

func serializedBody(s serializer.Serializer, body any, contentType string) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}

	data, err := s.Serialize(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrEncoding, err.Error())
	}

	return bytes.NewReader(data), contentType, nil
}

// multipartBody renders params and file parts as multipart/form-data payload.
func multipartBody(r Request) (io.Reader, string, error) {
	var buff bytes.Buffer
	w := multipart.NewWriter(&buff)

	for name, values := range r.Params {
		for _, value := range values {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", fmt.Errorf("%w: %s", ErrEncoding, err.Error())
			}
		}
	}

	for _, fp := range r.FileParts {
		f, err := os.Open(fp.Path)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s", ErrEncoding, err.Error())
		}

		name := fp.FileName
		if name == "" {
			name = filepath.Base(fp.Path)
		}

		part, err := w.CreateFormFile(fp.FieldName, name)
		if err != nil {
			_ = f.Close()
			return nil, "", fmt.Errorf("%w: %s", ErrEncoding, err.Error())
		}

		if _, err := io.Copy(part, f); err != nil {
			_ = f.Close()
			return nil, "", fmt.Errorf("%w: %s", ErrEncoding, err.Error())
		}

		_ = f.Close()
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrEncoding, err.Error())
	}

	return &buff, w.FormDataContentType(), nil
}
