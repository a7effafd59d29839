package sigset

import (
	"fmt"
	"io"

	"github.com/sfi-go/sfi/internal/digest"
	"github.com/sfi-go/sfi/internal/wire"
)

// Size limits (§6): a compiled container, and any single signature's
// payload blob within it, may not exceed 4 MiB.
const (
	MaxFileSize = 4 * 1024 * 1024
	MaxBlobSize = 4 * 1024 * 1024
)

const (
	setHeaderSize = 40 // magic(4) + checksum(32) + elem_count(4)
	sigHeaderSize = 40 // id(32) + size(4) + offset(4)
)

// SigRecord is one compiled signature as stored in a container: for
// KindHash, IDDigest holds the literal file digest and Attrs is empty; for
// the three bitmap kinds, IDDigest's first four bytes hold the little-
// endian SignatureID (the rest zero) and Attrs holds its attribute list.
type SigRecord struct {
	IDDigest    digest.Digest
	Description string
	Attrs       []digest.Digest
	// HashText is the literal sha256 text (KindHash only), replayed
	// verbatim in cause strings rather than recomputed from IDDigest so
	// the original document's case/formatting survives a compile/load round trip.
	HashText string
	// RawDoc is the verbatim signature document bytes (KindHash only),
	// carried through the container unchanged so Unpack can reproduce the
	// original file byte-for-byte (§8 testable property 1).
	RawDoc []byte
	// Tokens carries the declared human-readable token list (KindImport's
	// "library+symbol" strings, KindDynamic's call names), stored alongside
	// the attribute digests so cause strings can be rebuilt after a
	// container round trip without recomputing them from declared YAML.
	Tokens []string
}

func sigIDToDigest(id SignatureID) digest.Digest {
	var d digest.Digest
	d[0] = byte(id)
	d[1] = byte(id >> 8)
	d[2] = byte(id >> 16)
	d[3] = byte(id >> 24)
	return d
}

func sigIDFromDigest(d digest.Digest) SignatureID {
	return SignatureID(d[0]) | SignatureID(d[1])<<8 | SignatureID(d[2])<<16 | SignatureID(d[3])<<24
}

// encodeSigPayload lays out one signature's payload blob: description
// string, then for KindHash the literal sha256 text and the verbatim
// signature-document bytes it was compiled from, or for the three bitmap
// kinds the count and raw bytes of its attribute digests followed by the
// count and strings of its token list.
func encodeSigPayload(rec SigRecord, kind Kind) []byte {
	w := wire.NewWriter(64)
	w.PutString(rec.Description)
	if kind == KindHash {
		w.PutString(rec.HashText)
		w.PutByteVector(rec.RawDoc)
		return w.Bytes()
	}
	w.PutUint32(uint32(len(rec.Attrs)))
	for _, a := range rec.Attrs {
		w.PutRaw(a[:])
	}
	if kind == KindImport || kind == KindDynamic || kind == KindBehavioral {
		w.PutUint32(uint32(len(rec.Tokens)))
		for _, t := range rec.Tokens {
			w.PutString(t)
		}
	}
	return w.Bytes()
}

func decodeSigPayload(buf []byte, kind Kind) (description, hashText string, rawDoc []byte, attrs []digest.Digest, tokens []string, err error) {
	r := wire.NewReader(buf)
	description, err = r.String()
	if err != nil {
		return "", "", nil, nil, nil, err
	}
	if kind == KindHash {
		hashText, err = r.String()
		if err != nil {
			return "", "", nil, nil, nil, err
		}
		rawDoc, err = r.ByteVector()
		if err != nil {
			return "", "", nil, nil, nil, err
		}
		return description, hashText, rawDoc, nil, nil, nil
	}
	count, err := r.Uint32()
	if err != nil {
		return "", "", nil, nil, nil, err
	}
	attrs = make([]digest.Digest, count)
	for i := range attrs {
		raw, err := r.Raw(digest.Size)
		if err != nil {
			return "", "", nil, nil, nil, err
		}
		copy(attrs[i][:], raw)
	}
	if kind == KindImport || kind == KindDynamic || kind == KindBehavioral {
		tokenCount, err := r.Uint32()
		if err != nil {
			return "", "", nil, nil, nil, err
		}
		tokens = make([]string, tokenCount)
		for i := range tokens {
			tokens[i], err = r.String()
			if err != nil {
				return "", "", nil, nil, nil, err
			}
		}
	}
	return description, "", nil, attrs, tokens, nil
}

// WriteContainer serializes records as a compiled signature set of the
// given kind, per §4.6: a 40-byte SetHeader, N 40-byte SigHeaders, then
// the concatenated payload blobs, each zero-padded to 4 bytes.
func WriteContainer(w io.Writer, kind Kind, records []SigRecord) error {
	if len(records) > MaxSignatures {
		return &BuildError{Kind: TooManySignatures, Detail: fmt.Sprintf("%d records", len(records))}
	}

	blobs := make([][]byte, len(records))
	for i, rec := range records {
		blobs[i] = encodeSigPayload(rec, kind)
		if len(blobs[i]) > MaxBlobSize {
			return &IntegrityError{Kind: BlobTooLarge, Size: uint64(len(blobs[i]))}
		}
	}

	headers := wire.NewWriter(sigHeaderSize * len(records))
	var offset uint32
	for i, rec := range records {
		headers.PutRaw(rec.IDDigest[:])
		blobLen := uint32(wire.Align4(len(blobs[i])))
		headers.PutUint32(blobLen)
		headers.PutUint32(offset)
		offset += blobLen
	}

	payload := wire.NewWriter(int(offset))
	for _, b := range blobs {
		payload.PutRaw(b)
		if pad := wire.Align4(len(b)) - len(b); pad > 0 {
			payload.PutRaw(make([]byte, pad))
		}
	}

	elemCount := uint32(len(records))
	var elemCountBuf [4]byte
	elemCountBuf[0] = byte(elemCount)
	elemCountBuf[1] = byte(elemCount >> 8)
	elemCountBuf[2] = byte(elemCount >> 16)
	elemCountBuf[3] = byte(elemCount >> 24)

	checksum := digest.OfChunks(elemCountBuf[:], headers.Bytes(), payload.Bytes())

	out := wire.NewWriter(setHeaderSize + headers.Len() + payload.Len())
	out.PutUint32(kind.Magic())
	out.PutRaw(checksum[:])
	out.PutUint32(elemCount)
	out.PutRaw(headers.Bytes())
	out.PutRaw(payload.Bytes())

	total := out.Len()
	if total > MaxFileSize {
		return &IntegrityError{Kind: FileTooLarge, Size: uint64(total)}
	}

	_, err := w.Write(out.Bytes())
	return err
}

// ReadContainer parses and integrity-checks a container previously written
// by WriteContainer, returning its kind and decoded signature records.
func ReadContainer(r io.Reader) (Kind, []SigRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, fmt.Errorf("read container: %w", err)
	}
	if len(raw) > MaxFileSize {
		return 0, nil, &IntegrityError{Kind: FileTooLarge, Size: uint64(len(raw))}
	}
	if len(raw) < setHeaderSize {
		return 0, nil, &IntegrityError{Kind: BadMagic, Current: fmt.Sprintf("%d-byte file", len(raw))}
	}

	rdr := wire.NewReader(raw)
	magic, _ := rdr.Uint32()
	kind, ok := KindFromMagic(magic)
	if !ok {
		return 0, nil, &IntegrityError{Kind: BadMagic, Current: magicText(magic)}
	}
	checksumBytes, err := rdr.Raw(digest.Size)
	if err != nil {
		return 0, nil, &IntegrityError{Kind: BadMagic, Current: "truncated checksum"}
	}
	var wantChecksum digest.Digest
	copy(wantChecksum[:], checksumBytes)

	elemCount, err := rdr.Uint32()
	if err != nil {
		return 0, nil, &IntegrityError{Kind: BadMagic, Current: "truncated elem_count"}
	}
	if elemCount > MaxSignatures {
		return 0, nil, &IntegrityError{Kind: SignatureBounds, Size: uint64(elemCount)}
	}

	headersStart := rdr.Offset()
	headersLen := sigHeaderSize * int(elemCount)
	headerBytes, err := rdr.Raw(headersLen)
	if err != nil {
		return 0, nil, &IntegrityError{Kind: SignatureBounds, Size: uint64(elemCount)}
	}
	payloadBytes := raw[headersStart+headersLen:]

	var elemCountBuf [4]byte
	elemCountBuf[0] = byte(elemCount)
	elemCountBuf[1] = byte(elemCount >> 8)
	elemCountBuf[2] = byte(elemCount >> 16)
	elemCountBuf[3] = byte(elemCount >> 24)
	gotChecksum := digest.OfChunks(elemCountBuf[:], headerBytes, payloadBytes)
	if gotChecksum != wantChecksum {
		return 0, nil, &IntegrityError{Kind: ChecksumMismatch, Expected: wantChecksum.String(), Current: gotChecksum.String()}
	}

	hr := wire.NewReader(headerBytes)
	records := make([]SigRecord, elemCount)
	for i := range records {
		idRaw, err := hr.Raw(digest.Size)
		if err != nil {
			return 0, nil, &IntegrityError{Kind: SignatureBounds, Size: uint64(elemCount)}
		}
		size, err := hr.Uint32()
		if err != nil {
			return 0, nil, &IntegrityError{Kind: SignatureBounds, Size: uint64(elemCount)}
		}
		if size > MaxBlobSize {
			return 0, nil, &IntegrityError{Kind: BlobTooLarge, Size: uint64(size)}
		}
		offset, err := hr.Uint32()
		if err != nil {
			return 0, nil, &IntegrityError{Kind: SignatureBounds, Size: uint64(elemCount)}
		}
		if uint64(offset)+uint64(size) > uint64(len(payloadBytes)) {
			return 0, nil, &IntegrityError{Kind: SignatureBounds, Size: uint64(offset) + uint64(size)}
		}

		var idDigest digest.Digest
		copy(idDigest[:], idRaw)

		blob := payloadBytes[offset : offset+size]
		description, hashText, rawDoc, attrs, tokens, err := decodeSigPayload(blob, kind)
		if err != nil {
			return 0, nil, fmt.Errorf("sigset: decode signature %d payload: %w", i, err)
		}

		records[i] = SigRecord{IDDigest: idDigest, Description: description, HashText: hashText, RawDoc: rawDoc, Attrs: attrs, Tokens: tokens}
	}

	return kind, records, nil
}

func magicText(magic uint32) string {
	b := []byte{byte(magic), byte(magic >> 8), byte(magic >> 16), byte(magic >> 24)}
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			b[i] = '.'
		}
	}
	return string(b)
}
