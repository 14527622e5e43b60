package airquality

import (
	"errors"
	"fmt"
)

// Code classifies a request error.
type Code int

const (
	CodeNotFound Code = iota + 1
	CodeForbidden
	CodeInvalid
)

// Error is a request error with the message shown to the caller.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("airquality: %s", e.Message)
}

func notFound(msg string) *Error  { return &Error{Code: CodeNotFound, Message: msg} }
func forbidden(msg string) *Error { return &Error{Code: CodeForbidden, Message: msg} }
func invalid(msg string) *Error   { return &Error{Code: CodeInvalid, Message: msg} }

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Messages shown to callers.
const (
	MsgSuperusersOnly = "Managing Air Quality is for superusers only."

	MsgProjectNotFound     = "Project not found."
	MsgCategoryNotFound    = "Category not found."
	MsgFieldNotFound       = "Field not found."
	MsgLocationNotFound    = "Location not found."
	MsgMeasurementNotFound = "Measurement not found."

	MsgProjectAdded   = "The project has been added."
	MsgProjectUpdated = "The project has been updated."
	MsgProjectRemoved = "The project has been removed."

	msgNoSheet             = "You have no rights to retrieve a sheet."
	msgNoProjects          = "You have no rights to retrieve all projects."
	msgNoLocations         = "You have no rights to retrieve all locations."
	msgNoAddLocation       = "You have no rights to add a new location."
	msgNoEditLocation      = "You have no rights to edit this location."
	msgNoDeleteLocation    = "You have no rights to delete this location."
	msgNoAddMeasurement    = "You have no rights to add a new measurement."
	msgNoUpdateMeasurement = "You have no rights to update this measurement."
	msgNoDeleteMeasurement = "You have no rights to delete this measurement."
)
