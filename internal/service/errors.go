package service

import "errors"

var (
	ErrNotFound            = errors.New("error not found")
	ErrBudgetNotConfigured = errors.New("budget is not configured")
	ErrNoInstruments       = errors.New("instrument universe is empty")
	ErrInstrumentNotActive = errors.New("instrument is not active")
)
