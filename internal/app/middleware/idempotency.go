package middleware

import (
	"context"
	"encoding/hex"
	"errors"
	"reflect"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/blake2b"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/domainerr"
)

// IdempotentCommand is implemented by commands a client may safely resend.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer to a zero value of the handler result.
	ResultPrototype() any
}

// IdempotencyRecord is the stored outcome of a command. Exactly one of
// Payload or ErrorKind is set. ErrorDetail holds the encoded
// domainerr.Detail of a stored failure.
type IdempotencyRecord struct {
	Key          string
	Fingerprint  string
	Payload      []byte
	ErrorKind    string
	ErrorMessage string
	ErrorDetail  []byte
	OccurredAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	// Save stores rec for ttl. A zero ttl keeps it until evicted by the store.
	Save(ctx context.Context, rec IdempotencyRecord, ttl time.Duration) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// JSONResultCodec encodes results with json-iterator.
type JSONResultCodec struct{}

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return jsonCodec.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return jsonCodec.Unmarshal(data, out)
}

var (
	ErrMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	ErrKeyReused        = errors.New("idempotency key was already used for a different request")
)

// Idempotency replays the stored outcome of a command whose key was seen
// within ttl. A key resent with a different payload is rejected. Transient and
// unclassified failures are never stored so the client can retry them.
func Idempotency(store IdempotencyStore, codec ResultCodec, ttl time.Duration) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := scopedKey(ctx, cmd.Key(), idCmd.IdempotencyKey())
			fingerprint, err := Fingerprint(codec, cmd)
			if err != nil {
				return nil, err
			}
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(idCmd, codec, rec, fingerprint)
			}

			result, err := next.Dispatch(ctx, cmd)
			record := IdempotencyRecord{Key: key, Fingerprint: fingerprint, OccurredAt: time.Now().UTC()}
			if err != nil {
				if !cacheable(err) {
					return nil, err
				}
				record.ErrorKind = domainerr.Kind(err)
				record.ErrorMessage = err.Error()
				if detail, encErr := codec.Encode(domainerr.Describe(err)); encErr == nil {
					record.ErrorDetail = detail
				}
				if saveErr := store.Save(ctx, record, ttl); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record, ttl); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

// replayError rebuilds the typed error of a stored failure. Records written
// without a detail keep only their kind and message.
func replayError(codec ResultCodec, rec IdempotencyRecord) error {
	if len(rec.ErrorDetail) > 0 {
		var detail domainerr.Detail
		if err := codec.Decode(rec.ErrorDetail, &detail); err == nil && detail.Kind == rec.ErrorKind {
			return detail.Rebuild()
		}
	}
	return domainerr.FromKind(rec.ErrorKind, rec.ErrorMessage)
}

func replay(cmd IdempotentCommand, codec ResultCodec, rec IdempotencyRecord, fingerprint string) (any, error) {
	if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
		return nil, domainerr.Validation("idempotency_key", ErrKeyReused)
	}
	if rec.ErrorKind != "" {
		return nil, replayError(codec, rec)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, ErrMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return derefPrototype(proto), nil
}

// scopedKey keeps keys of different callers and commands apart.
func scopedKey(ctx context.Context, commandKey, key string) string {
	return commandKey + ":" + policies.PrincipalFrom(ctx).ID + ":" + key
}

func cacheable(err error) bool {
	switch domainerr.Kind(err) {
	case "validation", "not_found", "conflict", "forbidden":
		return true
	default:
		return false
	}
}

// Fingerprint hashes the command key and encoded payload with blake2b.
func Fingerprint(codec ResultCodec, cmd commands.Command) (string, error) {
	payload, err := codec.Encode(cmd)
	if err != nil {
		return "", err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(cmd.Key()))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func derefPrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return proto
}
