package lurk

import (
	"encoding/binary"
	"fmt"

	"github.com/lurklang/lurk-go/zdata"
)

// Proof serialization rides the same codec as everything else persisted:
// a cell of scalar atoms and per-step vectors.

func fVecData(vs []F) zdata.ZData {
	out := make([]zdata.ZData, len(vs))
	for i := range vs {
		out[i] = fData(vs[i])
	}
	return zdata.Cell(out...)
}

func fVecFromData(d zdata.ZData) ([]F, error) {
	parts, err := d.Children()
	if err != nil {
		return nil, err
	}
	out := make([]F, len(parts))
	for i := range parts {
		if out[i], err = fFromData(parts[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Ser serializes the proof.
func (p *Proof) Ser() []byte {
	accSec := p.AccSecondary.Bytes()
	return zdata.Cell(
		zdata.Atom(binary.LittleEndian.AppendUint64(nil, uint64(p.ReductionCount))),
		zdata.Atom(binary.LittleEndian.AppendUint64(nil, uint64(p.Steps))),
		fData(p.ParamsDigest),
		fData(p.Acc),
		zdata.Atom(accSec[:]),
		fVecData(p.StepComms),
		fVecData(p.StepIn),
		fVecData(p.StepOut),
		fVecData(p.Z0[:]),
		fVecData(p.Zn[:]),
	).Ser()
}

// DeProof parses a serialized proof.
func DeProof(raw []byte) (*Proof, error) {
	d, err := zdata.De(raw)
	if err != nil {
		return nil, ProofError{Kind: ProofErrVerify, Err: err}
	}
	parts, err := d.Children()
	if err != nil {
		return nil, ProofError{Kind: ProofErrVerify, Err: err}
	}
	if len(parts) != 10 {
		return nil, ProofError{Kind: ProofErrVerify, Err: fmt.Errorf("proof wants 10 parts, got %d", len(parts))}
	}
	fail := func(err error) (*Proof, error) {
		return nil, ProofError{Kind: ProofErrVerify, Err: err}
	}
	p := &Proof{}
	rcBytes, err := parts[0].AtomBytes()
	if err != nil || len(rcBytes) != 8 {
		return fail(fmt.Errorf("bad reduction count"))
	}
	p.ReductionCount = int(binary.LittleEndian.Uint64(rcBytes))
	stepBytes, err := parts[1].AtomBytes()
	if err != nil || len(stepBytes) != 8 {
		return fail(fmt.Errorf("bad step count"))
	}
	p.Steps = int(binary.LittleEndian.Uint64(stepBytes))
	if p.ParamsDigest, err = fFromData(parts[2]); err != nil {
		return fail(err)
	}
	if p.Acc, err = fFromData(parts[3]); err != nil {
		return fail(err)
	}
	accSecBytes, err := parts[4].AtomBytes()
	if err != nil {
		return fail(err)
	}
	p.AccSecondary.SetBytes(accSecBytes)
	if p.StepComms, err = fVecFromData(parts[5]); err != nil {
		return fail(err)
	}
	if p.StepIn, err = fVecFromData(parts[6]); err != nil {
		return fail(err)
	}
	if p.StepOut, err = fVecFromData(parts[7]); err != nil {
		return fail(err)
	}
	z0, err := fVecFromData(parts[8])
	if err != nil || len(z0) != 6 {
		return fail(fmt.Errorf("bad input endpoint"))
	}
	copy(p.Z0[:], z0)
	zn, err := fVecFromData(parts[9])
	if err != nil || len(zn) != 6 {
		return fail(fmt.Errorf("bad output endpoint"))
	}
	copy(p.Zn[:], zn)
	return p, nil
}
