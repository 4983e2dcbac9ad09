// Package command contains write operations on the live transcript (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/transcript-hub/internal/domain/shared"
	"github.com/alem-hub/transcript-hub/pkg/logger"
)

// validate is shared by every command; validator caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCommand checks the struct tags of cmd and reports every failed
// field as a single validation DomainError.
func validateCommand(op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return shared.WrapError("command", op, shared.ErrValidation, "invalid command", err)
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return shared.WrapError("command", op, shared.ErrValidation, strings.Join(msgs, "; "), err)
}

func fieldMessage(fe validator.FieldError) string {
	name := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}

// toSnake turns a Go field name such as SemesterID into semester_id.
func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// publish hands the event to the bus. A nil publisher is allowed and
// a failed publish is logged, never returned: the mutation already happened.
func publish(pub shared.EventPublisher, log *logger.Logger, event shared.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(event); err != nil {
		log.Warn("failed to publish event",
			logger.EventType(string(event.EventType())),
			logger.Err(err),
		)
	}
}

func orDiscard(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.Discard()
	}
	return log
}
