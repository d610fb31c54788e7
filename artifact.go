package framework

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/vgmdb/framework/tree"
)

// MaxArtifactSize is the maximum allowed uncompressed artifact payload (100MB).
const MaxArtifactSize = 100 * 1024 * 1024

// ArtifactVersion is the current artifact format version.
const ArtifactVersion = 1

// Artifact errors.
var (
	// ErrArtifactTooLarge is returned when an artifact payload exceeds MaxArtifactSize.
	ErrArtifactTooLarge = errors.New("framework: artifact exceeds 100MB size limit")

	// ErrUnsupportedVersion is returned when reading an artifact with an unknown version.
	ErrUnsupportedVersion = errors.New("framework: unsupported artifact version")
)

// Compression selects how artifact payloads are compressed.
type Compression string

const (
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionNone Compression = "none"
)

// ParseCompression parses a compression name. The empty string selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionNone:
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

// Compression tags are stored in the artifact header.
const (
	tagNone byte = 0
	tagLZ4  byte = 1
	tagZstd byte = 2
)

var artifactMagic = [4]byte{'V', 'G', 'C', 'F'}

// Header: magic(4) | version(1) | compression(1) | raw length(4, BE) | blake3(32).
const artifactHeaderSize = 4 + 1 + 1 + 4 + blake3Size

const blake3Size = 32

// SourceStamp records one file that contributed to a cached tree.
type SourceStamp struct {
	Path    string `cbor:"1,keyasint"`
	ModTime int64  `cbor:"2,keyasint,omitempty"` // UnixNano
	Hash    []byte `cbor:"3,keyasint,omitempty"` // BLAKE3 of the content
	Missing bool   `cbor:"4,keyasint,omitempty"` // probed path of an optional import that did not exist
}

// Artifact is a cached, fully resolved configuration tree together with
// what is needed to decide whether it is still valid.
type Artifact struct {
	Timestamp   time.Time
	Fingerprint []byte
	Sources     []SourceStamp
	Tree        *tree.Tree
	Provenance  *Provenance
}

type artifactPayload struct {
	Timestamp   int64           `cbor:"1,keyasint"`
	Fingerprint []byte          `cbor:"2,keyasint"`
	Sources     []SourceStamp   `cbor:"3,keyasint"`
	Tree        wireNode        `cbor:"4,keyasint"`
	Provenance  []wireKeySource `cbor:"5,keyasint,omitempty"`
}

type wireKeySource struct {
	KeyPath string `cbor:"1,keyasint"`
	Source  string `cbor:"2,keyasint"`
}

// wireNode is the artifact encoding of a tree value. Kinds are explicit so
// integers and floats keep their type, and mapping keys keep their order.
type wireNode struct {
	Kind  uint8      `cbor:"1,keyasint"`
	Bool  bool       `cbor:"2,keyasint,omitempty"`
	Int   int64      `cbor:"3,keyasint,omitempty"`
	Float float64    `cbor:"4,keyasint,omitempty"`
	Str   string     `cbor:"5,keyasint,omitempty"`
	Keys  []string   `cbor:"6,keyasint,omitempty"`
	Items []wireNode `cbor:"7,keyasint,omitempty"`
}

const (
	wireNull uint8 = iota
	wireBool
	wireInt
	wireFloat
	wireString
	wireSequence
	wireMapping
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("framework: CBOR encoder initialization failed: " + err.Error())
	}
	cborDecMode, err = cbor.DecOptions{MaxNestedLevels: 256}.DecMode()
	if err != nil {
		panic("framework: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("framework: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("framework: zstd decoder initialization failed: " + err.Error())
	}
}

func toWire(v any) wireNode {
	switch val := v.(type) {
	case nil:
		return wireNode{Kind: wireNull}
	case bool:
		return wireNode{Kind: wireBool, Bool: val}
	case int64:
		return wireNode{Kind: wireInt, Int: val}
	case float64:
		return wireNode{Kind: wireFloat, Float: val}
	case string:
		return wireNode{Kind: wireString, Str: val}
	case []any:
		n := wireNode{Kind: wireSequence, Items: make([]wireNode, len(val))}
		for i, item := range val {
			n.Items[i] = toWire(item)
		}
		return n
	case *tree.Tree:
		n := wireNode{Kind: wireMapping, Keys: val.Keys(), Items: make([]wireNode, 0, val.Len())}
		for _, key := range n.Keys {
			item, _ := val.Get(key)
			n.Items = append(n.Items, toWire(item))
		}
		return n
	default:
		switch nv := tree.Normalize(v); nv.(type) {
		case nil, bool, int64, float64, string, []any, *tree.Tree:
			return toWire(nv)
		}
		return wireNode{Kind: wireString, Str: fmt.Sprint(v)}
	}
}

func fromWire(n wireNode) (any, error) {
	switch n.Kind {
	case wireNull:
		return nil, nil
	case wireBool:
		return n.Bool, nil
	case wireInt:
		return n.Int, nil
	case wireFloat:
		return n.Float, nil
	case wireString:
		return n.Str, nil
	case wireSequence:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			v, err := fromWire(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case wireMapping:
		if len(n.Keys) != len(n.Items) {
			return nil, fmt.Errorf("mapping has %d keys and %d values", len(n.Keys), len(n.Items))
		}
		t := tree.New()
		for i, key := range n.Keys {
			v, err := fromWire(n.Items[i])
			if err != nil {
				return nil, err
			}
			t.Set(key, v)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

// EncodeArtifact serializes a into the artifact file format.
func EncodeArtifact(a *Artifact, c Compression) ([]byte, error) {
	if a == nil || a.Tree == nil {
		return nil, errors.New("framework: artifact has no tree")
	}

	payload := artifactPayload{
		Timestamp:   a.Timestamp.UnixNano(),
		Fingerprint: a.Fingerprint,
		Sources:     a.Sources,
		Tree:        toWire(a.Tree),
	}
	if a.Provenance != nil {
		payload.Provenance = make([]wireKeySource, len(a.Provenance.Keys))
		for i, k := range a.Provenance.Keys {
			payload.Provenance[i] = wireKeySource{KeyPath: k.KeyPath, Source: k.Source}
		}
	}

	raw, err := cborEncMode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	if len(raw) > MaxArtifactSize {
		return nil, ErrArtifactTooLarge
	}

	body, tag, err := compressPayload(raw, c)
	if err != nil {
		return nil, err
	}

	sum := blake3.Sum256(raw)
	out := make([]byte, artifactHeaderSize, artifactHeaderSize+len(body))
	copy(out[0:4], artifactMagic[:])
	out[4] = ArtifactVersion
	out[5] = tag
	binary.BigEndian.PutUint32(out[6:10], uint32(len(raw)))
	copy(out[10:], sum[:])
	return append(out, body...), nil
}

// DecodeArtifact parses data produced by EncodeArtifact. The checksum is
// verified before the payload is decoded.
func DecodeArtifact(data []byte) (*Artifact, error) {
	if len(data) < artifactHeaderSize {
		return nil, fmt.Errorf("truncated header: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], artifactMagic[:]) {
		return nil, errors.New("bad magic")
	}
	if data[4] != ArtifactVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[4])
	}

	rawLen := binary.BigEndian.Uint32(data[6:10])
	if rawLen > MaxArtifactSize {
		return nil, ErrArtifactTooLarge
	}

	raw, err := decompressPayload(data[artifactHeaderSize:], data[5], int(rawLen))
	if err != nil {
		return nil, err
	}

	sum := blake3.Sum256(raw)
	if !bytes.Equal(sum[:], data[10:artifactHeaderSize]) {
		return nil, errors.New("checksum mismatch")
	}

	var payload artifactPayload
	if err := cborDecMode.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	root, err := fromWire(payload.Tree)
	if err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	t, ok := root.(*tree.Tree)
	if !ok {
		return nil, fmt.Errorf("decode tree: root is a %s", tree.Kind(root))
	}

	a := &Artifact{
		Timestamp:   time.Unix(0, payload.Timestamp),
		Fingerprint: payload.Fingerprint,
		Sources:     payload.Sources,
		Tree:        t,
	}
	if payload.Provenance != nil {
		a.Provenance = &Provenance{Keys: make([]KeyProvenance, len(payload.Provenance))}
		for i, k := range payload.Provenance {
			a.Provenance.Keys[i] = KeyProvenance{KeyPath: k.KeyPath, Source: k.Source}
		}
	}
	return a, nil
}

// compressPayload falls back to storing raw bytes when compression does not
// shrink them.
func compressPayload(raw []byte, c Compression) ([]byte, byte, error) {
	c, err := ParseCompression(string(c))
	if err != nil {
		return nil, 0, err
	}

	switch c {
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(raw, nil)
		if len(compressed) < len(raw) {
			return compressed, tagZstd, nil
		}
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n > 0 && n < len(raw) {
			return dst[:n], tagLZ4, nil
		}
	}
	return raw, tagNone, nil
}

func decompressPayload(body []byte, tag byte, rawLen int) ([]byte, error) {
	switch tag {
	case tagNone:
		if len(body) != rawLen {
			return nil, fmt.Errorf("payload size %d does not match expected %d", len(body), rawLen)
		}
		return body, nil
	case tagLZ4:
		dst := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, rawLen)
		}
		return dst, nil
	case tagZstd:
		out, err := zstdDecoder.DecodeAll(body, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", tag)
	}
}

// ReadArtifact reads and decodes the artifact at path. A missing file is
// returned as the underlying os error; anything unreadable past that point
// is a *CacheCorruptionError.
func ReadArtifact(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxArtifactSize+artifactHeaderSize {
		return nil, &CacheCorruptionError{Path: path, Reason: "file too large", Err: ErrArtifactTooLarge}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	a, err := DecodeArtifact(data)
	if err != nil {
		return nil, &CacheCorruptionError{Path: path, Reason: "decode", Err: err}
	}
	return a, nil
}

// WriteArtifact writes data to path atomically: it is written to a temp file
// in the same directory and renamed over the target. Concurrent writers do
// not corrupt the file; the last rename wins.
func WriteArtifact(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	tempPath, err := generateTempFileName(path)
	if err != nil {
		return err
	}

	// Clean up the temp file on any failure before the rename.
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tempPath)
		}
	}()

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	renamed = true
	return nil
}

// generateTempFileName creates a unique temp file name next to targetPath.
// Format: targetPath + ".tmp." + randomHex
func generateTempFileName(targetPath string) (string, error) {
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate temp name: %w", err)
	}
	return targetPath + ".tmp." + hex.EncodeToString(randomBytes), nil
}
