package transport

import (
	"fmt"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

// request is one frame's worth of envelope: a request id the client picks
// (echoed back so Concurrent-policy pipelining can match a response to its
// request out of order), the command discriminant, and the command's own
// argument encoding.
type request struct {
	id   uint64
	kind wire.CommandKind
	args *wire.Decoder
}

func encodeRequest(id uint64, kind wire.CommandKind, args *wire.Encoder) []byte {
	e := wire.NewEncoder()
	e.PutUint64(id)
	e.PutUint8(uint8(kind))
	return append(e.Bytes(), args.Bytes()...)
}

func decodeRequest(payload []byte) (request, error) {
	d := wire.NewDecoder(payload)
	id, err := d.GetUint64()
	if err != nil {
		return request{}, err
	}
	kindByte, err := d.GetUint8()
	if err != nil {
		return request{}, err
	}
	return request{id: id, kind: wire.CommandKind(kindByte), args: wire.NewDecoder(d.Remaining())}, nil
}

// response mirrors request: a matching id, a status, and either result
// fields or a reconstructible error.
func encodeOKResponse(id uint64, fields *wire.Encoder) []byte {
	e := wire.NewEncoder()
	e.PutUint64(id)
	e.PutUint8(uint8(wire.StatusOK))
	return append(e.Bytes(), fields.Bytes()...)
}

// remoteError is what a client reconstructs an RPC failure as: the
// provider's own domain error types don't survive serialization (their
// exact Go type isn't meaningful once it crossed a process boundary), so
// the wire carries a coarse kind tag plus the original Error() text and
// the client exposes both.
type remoteError struct {
	Kind    string
	Message string
}

func (e *remoteError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func errorKind(err error) string {
	switch err.(type) {
	case *domain.BadAllocError:
		return "bad_alloc"
	case *domain.UnknownIDError:
		return "unknown_id"
	case *domain.UnknownSegmentIDError:
		return "unknown_segment_id"
	case *domain.AccessTokenDoesNotBelongToThisError:
		return "access_token_does_not_belong_to_this"
	case *domain.RangesAreNotTouchingError:
		return "ranges_are_not_touching"
	case *domain.AppendRangesAreNotTouchingError:
		return "append_ranges_are_not_touching"
	case *domain.MethodNotProvidedError:
		return "method_not_provided"
	case *domain.ShortTransferError:
		return "short_transfer"
	case *domain.NegativeOffsetError:
		return "negative_offset"
	case *domain.UnsupportedError:
		return "unsupported"
	default:
		return "internal"
	}
}

func encodeErrorResponse(id uint64, err error) []byte {
	e := wire.NewEncoder()
	e.PutUint64(id)
	e.PutUint8(uint8(wire.StatusError))
	e.PutString(errorKind(err))
	e.PutString(err.Error())
	return e.Bytes()
}

// decodeResponseHeader reads the id/status/(error kind+message) common to
// every response, returning the decoder positioned at the start of the
// result fields when status is OK.
func decodeResponseHeader(payload []byte) (id uint64, resultArgs *wire.Decoder, rpcErr error, err error) {
	d := wire.NewDecoder(payload)
	id, err = d.GetUint64()
	if err != nil {
		return 0, nil, nil, err
	}
	statusByte, err := d.GetUint8()
	if err != nil {
		return 0, nil, nil, err
	}
	if wire.StatusKind(statusByte) == wire.StatusError {
		kind, err := d.GetString()
		if err != nil {
			return 0, nil, nil, err
		}
		msg, err := d.GetString()
		if err != nil {
			return 0, nil, nil, err
		}
		return id, nil, &remoteError{Kind: kind, Message: msg}, nil
	}
	return id, wire.NewDecoder(d.Remaining()), nil, nil
}
