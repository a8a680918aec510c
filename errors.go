package png

// UnknownFormatError reports that the input does not start with the PNG
// signature. It is returned only by Decode's entry check, before any
// chunk is parsed.
type UnknownFormatError string

func (e UnknownFormatError) Error() string { return "png: unknown format: " + string(e) }

// FormatError reports a structural or semantic violation of the PNG,
// ZLIB, or DEFLATE wire formats: a bad CRC, an out-of-range length, a
// disallowed chunk combination, an invalid Huffman code distribution,
// and so on.
type FormatError string

func (e FormatError) Error() string { return "png: invalid format: " + string(e) }

// UnsupportedError reports a feature this decoder deliberately declines
// to support.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "png: unsupported feature: " + string(e) }
