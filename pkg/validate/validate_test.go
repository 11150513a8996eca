package validate_test

import (
	"errors"
	"testing"

	"github.com/okian/leaderboard/pkg/validate"
	. "github.com/smartystreets/goconvey/convey"
)

type sample struct {
	Action string `json:"action" validate:"required"`
	Number int    `json:"number" validate:"min=1"`
}

func TestStruct(t *testing.T) {
	Convey("Given the shared validator", t, func() {
		Convey("When a payload is valid", func() {
			err := validate.Struct(sample{Action: "labeled", Number: 3})

			Convey("Then no error is returned", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When a required field is missing", func() {
			err := validate.Struct(sample{Number: 3})

			Convey("Then the error wraps ErrInvalid and names the json field", func() {
				So(errors.Is(err, validate.ErrInvalid), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "action is a required field")
			})
		})

		Convey("When validating something that is not a struct", func() {
			err := validate.Struct(42)

			Convey("Then it is reported as invalid", func() {
				So(errors.Is(err, validate.ErrInvalid), ShouldBeTrue)
			})
		})

		Convey("When asking for the service twice", func() {
			Convey("Then the same instance is returned", func() {
				So(validate.Get(), ShouldEqual, validate.Get())
			})
		})
	})
}
