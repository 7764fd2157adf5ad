package stream

import (
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/uvcompat/errors"
	"github.com/wippyai/uvcompat/status"
)

// WriteUtf8String writes str as UTF-8. Invalid sequences become U+FFFD.
func (s *Stream) WriteUtf8String(req *WriteRequest, str string) status.Code {
	return s.writeEncoded(req, str, unicode.UTF8.NewEncoder())
}

// WriteLatin1String writes str as ISO 8859-1. Runes outside Latin-1 are
// replaced with the charmap's substitution byte.
func (s *Stream) WriteLatin1String(req *WriteRequest, str string) status.Code {
	return s.writeEncoded(req, str, encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()))
}

// WriteASCIIString writes str as 7-bit bytes: each rune is encoded as
// Latin-1 and its high bit dropped.
func (s *Stream) WriteASCIIString(req *WriteRequest, str string) status.Code {
	data, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(str))
	if err != nil {
		return s.encodeFailed(err)
	}
	for i, b := range data {
		data[i] = b & 0x7f
	}
	return s.WriteBuffer(req, data)
}

// WriteUcs2String is not supported and always panics.
func (s *Stream) WriteUcs2String(req *WriteRequest, str string) status.Code {
	panic(errors.Unsupported(errors.PhaseEncode, "ucs2 string writes"))
}

func (s *Stream) writeEncoded(req *WriteRequest, str string, enc *encoding.Encoder) status.Code {
	data, err := enc.Bytes([]byte(str))
	if err != nil {
		return s.encodeFailed(err)
	}
	return s.WriteBuffer(req, data)
}

func (s *Stream) encodeFailed(err error) status.Code {
	s.Logger().Debug("string encoding failed",
		zap.Error(errors.Wrap(errors.PhaseEncode, errors.KindInvalidInput, err, "encode string write")))
	return status.EINVAL
}
