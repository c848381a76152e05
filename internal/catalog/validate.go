package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"kinokod-bot/internal/genre"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("genre", func(fl validator.FieldLevel) bool {
			return genre.Valid(fl.Field().String())
		})
		v.RegisterStructValidation(validateKey, Record{})
		validate = v
	})
	return validate
}

func validateKey(sl validator.StructLevel) {
	rec := sl.Current().Interface().(Record)
	switch rec.Shape {
	case Standalone:
		if rec.Key != (EpisodeKey{}) {
			sl.ReportError(rec.Key, "Key", "Key", "standalone_key", "")
		}
	case Seasoned:
		if rec.Key.Season < 1 {
			sl.ReportError(rec.Key.Season, "Season", "Season", "gte", "1")
		}
		if rec.Key.Episode < 1 {
			sl.ReportError(rec.Key.Episode, "Episode", "Episode", "gte", "1")
		}
	case Flat:
		if rec.Key.Season != 0 {
			sl.ReportError(rec.Key.Season, "Season", "Season", "flat_season", "")
		}
		if rec.Key.Episode < 1 {
			sl.ReportError(rec.Key.Episode, "Episode", "Episode", "gte", "1")
		}
	default:
		sl.ReportError(rec.Shape, "Shape", "Shape", "shape", "")
	}
}

// Validate checks a record before it is written.
func Validate(rec Record) error {
	err := recordValidator().Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Code: CodeValidation, Message: "invalid record", cause: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return Errorf(CodeValidation, "invalid record: %s", strings.Join(fields, ", "))
}

// ValidatePatch checks the fields a patch sets. Renumbering fields are only
// accepted for single-row updates.
func ValidatePatch(shape Shape, p Patch, perRow bool) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return Errorf(CodeValidation, "title must not be empty")
	}
	if p.MediaRef != nil && *p.MediaRef == "" {
		return Errorf(CodeValidation, "media reference must not be empty")
	}
	if p.Genres != nil {
		for _, g := range *p.Genres {
			if !genre.Valid(g) {
				return Errorf(CodeValidation, "unknown genre %q", g)
			}
		}
	}
	if p.Season != nil {
		if !perRow || shape != Seasoned {
			return Errorf(CodeValidation, "season can only be changed on a seasoned episode")
		}
		if *p.Season < 1 {
			return Errorf(CodeValidation, "season must be at least 1")
		}
	}
	if p.Episode != nil {
		if !perRow || !shape.Episodic() {
			return Errorf(CodeValidation, "episode can only be changed on an episode")
		}
		if *p.Episode < 1 {
			return Errorf(CodeValidation, "episode must be at least 1")
		}
	}
	return nil
}

// ApplyKey returns key renumbered by the patch.
func ApplyKey(key EpisodeKey, p Patch) EpisodeKey {
	if p.Season != nil {
		key.Season = *p.Season
	}
	if p.Episode != nil {
		key.Episode = *p.Episode
	}
	return key
}
