package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"innkeep/internal/app/commands"
)

// IdempotentCommand is implemented by admin commands that carry an
// Idempotency-Key header value.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // pointer to the handler result type
}

// IdempotencyRecord is the stored outcome of the first attempt. Fingerprint
// identifies the command body so a reused key with another body is refused.
type IdempotencyRecord struct {
	Key         string
	Fingerprint string
	Payload     []byte
	Error       string
	OccurredAt  time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var (
	ErrReplayedFailure     = errors.New("idempotency: replayed failure")
	ErrIdempotencyConflict = errors.New("idempotency: key reused with a different request")
	errMissingPrototype    = errors.New("middleware: idempotent command requires result prototype")
)

// Idempotency answers retries of the same admin command from the stored
// outcome of the first attempt. Outcomes of cancelled attempts are not kept.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
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
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			fingerprint, err := Fingerprint(cmd)
			if err != nil {
				return nil, err
			}
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
					return nil, fmt.Errorf("%w: %s", ErrIdempotencyConflict, idCmd.IdempotencyKey())
				}
				return replay(rec, idCmd, codec)
			}

			result, runErr := next.Dispatch(ctx, cmd)
			if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
				return nil, runErr
			}
			record := IdempotencyRecord{Key: key, Fingerprint: fingerprint, OccurredAt: time.Now().UTC()}
			if runErr != nil {
				record.Error = runErr.Error()
			} else if result != nil {
				if record.Payload, err = codec.Encode(result); err != nil {
					return nil, err
				}
			}
			if err := store.Save(ctx, record); err != nil {
				if runErr != nil {
					return nil, errors.Join(runErr, err)
				}
				return nil, err
			}
			return result, runErr
		})
	}
}

// Fingerprint hashes the JSON form of cmd.
func Fingerprint(cmd commands.Command) (string, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("idempotency: fingerprint %s: %w", cmd.Key(), err)
	}
	sum := sha256.Sum256(append([]byte(cmd.Key()+"\n"), body...))
	return hex.EncodeToString(sum[:]), nil
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrReplayedFailure, rec.Error)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
