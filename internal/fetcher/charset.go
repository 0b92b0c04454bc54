package fetcher

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// toUTF8 перекодирует тело страницы в UTF-8 по Content-Type, BOM или
// <meta charset>. Угаданная (не объявленная) кодировка применяется только
// к телу, которое не является валидным UTF-8. Если декодировать не удалось,
// тело возвращается как есть.
func toUTF8(body []byte, contentType string) []byte {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body
	}
	if !certain && utf8.Valid(body) {
		return body
	}

	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return body
	}
	return decoded
}
