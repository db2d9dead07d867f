package lurk

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/lurklang/lurk-go/zdata"
)

// DefaultParamsDir is where public-parameter files live unless configured
// otherwise.
const DefaultParamsDir = "params"

// PublicParams identify and parameterize the step circuit the folding
// backend proves against: the multi-frame width, the lang key, and the
// blank circuit's shape. The digest binds all of it and seeds the folding
// transcript.
type PublicParams struct {
	ReductionCount int
	LangKey        string
	NumConstraints int
	NumInputs      int
	Digest         F
}

// NewPublicParams generates parameters from the blank circuit for the given
// width and coprocessor set. This is the expensive path; use
// PublicParamsFor to go through the caches.
func NewPublicParams(rc int, lang *Lang) (*PublicParams, error) {
	if rc <= 0 {
		return nil, fmt.Errorf("public params: reduction count must be positive, got %d", rc)
	}
	blank := BlankMultiFrame(rc, lang)
	cs := NewTestConstraintSystem()
	if err := blank.Synthesize(cs); err != nil {
		return nil, ProofError{Kind: ProofErrSynthesis, Err: err}
	}
	key := lang.Key()
	keyDigest := blake3.Sum256([]byte(key))
	pp := &PublicParams{
		ReductionCount: rc,
		LangKey:        key,
		NumConstraints: cs.NumConstraints(),
		NumInputs:      cs.NumInputs(),
	}
	pp.Digest = poseidon4(
		fUint64(uint64(rc)),
		fFromBytes(keyDigest[:]),
		fUint64(uint64(pp.NumConstraints)),
		fUint64(uint64(pp.NumInputs)),
	)
	return pp, nil
}

type registryKey struct {
	rc         int
	abomonated bool
}

// paramsRegistry is the process-wide public-parameter cache. Handles are
// shared; parameters are immutable once registered.
var paramsRegistry = struct {
	sync.Mutex
	m map[registryKey]*PublicParams
}{m: make(map[registryKey]*PublicParams)}

// paramsFileName follows the layout the disk cache is keyed by.
func paramsFileName(rc int, langKey string, abomonated bool) string {
	suffix := ""
	if abomonated {
		suffix = "-abomonated"
	}
	return fmt.Sprintf("public-params-rc-%d-coproc-%s%s", rc, langKey, suffix)
}

// PublicParamsFor resolves parameters through the in-memory registry, then
// the disk cache under dir, then fresh generation with a write-back. Disk
// failures degrade to generation and are logged, never fatal.
func PublicParamsFor(rc int, lang *Lang, abomonated bool, dir string) (*PublicParams, error) {
	paramsRegistry.Lock()
	defer paramsRegistry.Unlock()
	key := registryKey{rc: rc, abomonated: abomonated}
	if pp, ok := paramsRegistry.m[key]; ok && pp.LangKey == lang.Key() {
		return pp, nil
	}
	pp, err := publicParamsFromDiskOrGenerate(rc, lang, abomonated, dir)
	if err != nil {
		return nil, err
	}
	paramsRegistry.m[key] = pp
	return pp, nil
}

func publicParamsFromDiskOrGenerate(rc int, lang *Lang, abomonated bool, dir string) (*PublicParams, error) {
	if dir == "" {
		dir = DefaultParamsDir
	}
	langKey := lang.Key()
	path := filepath.Join(dir, paramsFileName(rc, langKey, abomonated))
	if raw, err := os.ReadFile(path); err == nil {
		pp, err := decodeParams(raw, abomonated)
		if err == nil && pp.ReductionCount == rc && pp.LangKey == langKey {
			logger().Info("using disk-cached public params",
				zap.String("lang", langKey), zap.Int("rc", rc))
			return pp, nil
		}
		logger().Warn("ignoring unusable public params file",
			zap.String("path", path), zap.Error(err))
	}
	logger().Info("generating public params",
		zap.String("lang", langKey), zap.Int("rc", rc))
	pp, err := NewPublicParams(rc, lang)
	if err != nil {
		return nil, err
	}
	if err := writeParams(path, pp, abomonated); err != nil {
		logger().Warn("writing public params to disk-cache failed", zap.Error(err))
	} else {
		logger().Info("wrote public params to disk-cache", zap.String("lang", langKey))
	}
	return pp, nil
}

func writeParams(path string, pp *PublicParams, abomonated bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return CacheError{Message: err.Error()}
	}
	if err := os.WriteFile(path, encodeParams(pp, abomonated), 0o644); err != nil {
		return CacheError{Message: err.Error()}
	}
	return nil
}

// encodeParams has two layouts: the abomonated form is a flat
// little-endian struct dump for mmap-style loading, the default form goes
// through the zdata codec. Both carry a blake3 checksum.
func encodeParams(pp *PublicParams, abomonated bool) []byte {
	var body []byte
	if abomonated {
		body = binary.LittleEndian.AppendUint64(body, uint64(pp.ReductionCount))
		body = binary.LittleEndian.AppendUint64(body, uint64(pp.NumConstraints))
		body = binary.LittleEndian.AppendUint64(body, uint64(pp.NumInputs))
		digest := pp.Digest.Bytes()
		body = append(body, digest[:]...)
		body = binary.LittleEndian.AppendUint64(body, uint64(len(pp.LangKey)))
		body = append(body, pp.LangKey...)
	} else {
		digest := pp.Digest.Bytes()
		body = zdata.Cell(
			zdata.Atom(binary.LittleEndian.AppendUint64(nil, uint64(pp.ReductionCount))),
			zdata.Atom([]byte(pp.LangKey)),
			zdata.Atom(binary.LittleEndian.AppendUint64(nil, uint64(pp.NumConstraints))),
			zdata.Atom(binary.LittleEndian.AppendUint64(nil, uint64(pp.NumInputs))),
			zdata.Atom(digest[:]),
		).Ser()
	}
	sum := blake3.Sum256(body)
	return append(body, sum[:]...)
}

func decodeParams(raw []byte, abomonated bool) (*PublicParams, error) {
	if len(raw) < 32 {
		return nil, CacheError{Message: "params file truncated"}
	}
	body, sum := raw[:len(raw)-32], raw[len(raw)-32:]
	want := blake3.Sum256(body)
	if string(sum) != string(want[:]) {
		return nil, CacheError{Message: "params file checksum mismatch"}
	}
	pp := &PublicParams{}
	if abomonated {
		if len(body) < 8*4+32 {
			return nil, CacheError{Message: "params file truncated"}
		}
		pp.ReductionCount = int(binary.LittleEndian.Uint64(body[0:8]))
		pp.NumConstraints = int(binary.LittleEndian.Uint64(body[8:16]))
		pp.NumInputs = int(binary.LittleEndian.Uint64(body[16:24]))
		pp.Digest = fFromBytes(body[24:56])
		keyLen := int(binary.LittleEndian.Uint64(body[56:64]))
		if len(body) < 64+keyLen {
			return nil, CacheError{Message: "params file truncated"}
		}
		pp.LangKey = string(body[64 : 64+keyLen])
		return pp, nil
	}
	d, err := zdata.De(body)
	if err != nil {
		return nil, CacheError{Message: err.Error()}
	}
	parts, err := d.Children()
	if err != nil || len(parts) != 5 {
		return nil, CacheError{Message: "params file malformed"}
	}
	fields := make([][]byte, 5)
	for i := range parts {
		if fields[i], err = parts[i].AtomBytes(); err != nil {
			return nil, CacheError{Message: err.Error()}
		}
	}
	if len(fields[0]) != 8 || len(fields[2]) != 8 || len(fields[3]) != 8 {
		return nil, CacheError{Message: "params file malformed"}
	}
	pp.ReductionCount = int(binary.LittleEndian.Uint64(fields[0]))
	pp.LangKey = string(fields[1])
	pp.NumConstraints = int(binary.LittleEndian.Uint64(fields[2]))
	pp.NumInputs = int(binary.LittleEndian.Uint64(fields[3]))
	pp.Digest = fFromBytes(fields[4])
	return pp, nil
}

// ClearParamsRegistry empties the in-memory registry. Tests use it to force
// the disk path.
func ClearParamsRegistry() {
	paramsRegistry.Lock()
	defer paramsRegistry.Unlock()
	paramsRegistry.m = make(map[registryKey]*PublicParams)
}
