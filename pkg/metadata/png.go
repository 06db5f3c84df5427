package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"golang.org/x/text/encoding/charmap"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Decompressed text chunks larger than this are rejected.
const maxTextSize = 32 << 20

// ReadTextFields returns the keyword/value pairs stored in the tEXt, zTXt and
// iTXt chunks of a PNG image. The first chunk for a keyword wins. Text chunks
// that cannot be decoded are skipped.
func ReadTextFields(data []byte) (map[string]string, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ErrUnsupportedImage
	}

	fields := make(map[string]string)
	rest := data[len(pngSignature):]

	for len(rest) > 0 {
		if len(rest) < 12 {
			return nil, fmt.Errorf("%w: truncated chunk header", ErrCorruptImage)
		}

		length := binary.BigEndian.Uint32(rest[:4])
		if uint64(length) > uint64(len(rest)-12) {
			return nil, fmt.Errorf("%w: chunk length %d exceeds remaining data", ErrCorruptImage, length)
		}

		end := 8 + int(length)
		kind := string(rest[4:8])
		body := rest[8:end]
		sum := binary.BigEndian.Uint32(rest[end : end+4])
		if crc32.ChecksumIEEE(rest[4:end]) != sum {
			return nil, fmt.Errorf("%w: crc mismatch in %s chunk", ErrCorruptImage, kind)
		}

		var (
			keyword, text string
			err           error
		)
		switch kind {
		case "tEXt":
			keyword, text, err = decodeText(body)
		case "zTXt":
			keyword, text, err = decodeCompressedText(body)
		case "iTXt":
			keyword, text, err = decodeInternationalText(body)
		case "IEND":
			return fields, nil
		default:
			rest = rest[end+4:]
			continue
		}

		if err == nil {
			if _, exists := fields[keyword]; !exists {
				fields[keyword] = text
			}
		}
		rest = rest[end+4:]
	}

	return fields, nil
}

func splitKeyword(body []byte) (string, []byte, error) {
	idx := bytes.IndexByte(body, 0)
	if idx < 1 || idx > 79 {
		return "", nil, fmt.Errorf("invalid keyword length %d", idx)
	}
	keyword, err := latin1(body[:idx])
	if err != nil {
		return "", nil, err
	}
	return keyword, body[idx+1:], nil
}

func decodeText(body []byte) (string, string, error) {
	keyword, rest, err := splitKeyword(body)
	if err != nil {
		return "", "", err
	}
	text, err := latin1(rest)
	return keyword, text, err
}

func decodeCompressedText(body []byte) (string, string, error) {
	keyword, rest, err := splitKeyword(body)
	if err != nil {
		return "", "", err
	}
	if len(rest) < 1 || rest[0] != 0 {
		return "", "", fmt.Errorf("unsupported compression method")
	}
	raw, err := inflate(rest[1:])
	if err != nil {
		return "", "", err
	}
	text, err := latin1(raw)
	return keyword, text, err
}

func decodeInternationalText(body []byte) (string, string, error) {
	keyword, rest, err := splitKeyword(body)
	if err != nil {
		return "", "", err
	}
	if len(rest) < 2 {
		return "", "", fmt.Errorf("truncated iTXt header")
	}
	compressed, method := rest[0] == 1, rest[1]
	rest = rest[2:]

	// language tag, then translated keyword
	for i := 0; i < 2; i++ {
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			return "", "", fmt.Errorf("truncated iTXt header")
		}
		rest = rest[idx+1:]
	}

	if compressed {
		if method != 0 {
			return "", "", fmt.Errorf("unsupported compression method %d", method)
		}
		if rest, err = inflate(rest); err != nil {
			return "", "", err
		}
	}
	return keyword, string(rest), nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxTextSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxTextSize {
		return nil, fmt.Errorf("decompressed text exceeds %d bytes", maxTextSize)
	}
	return out, nil
}

func latin1(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
