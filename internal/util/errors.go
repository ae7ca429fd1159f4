package util

import "errors"

var (
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotReady     = errors.New("exam is still processing")
	ErrQuestionNotFound = errors.New("question not found")
	ErrFileNotInStorage = errors.New("file not found in storage")
	ErrInvalidPDF       = errors.New("file is not a valid PDF")
	ErrTooManyPages     = errors.New("PDF exceeds the page limit")
)
