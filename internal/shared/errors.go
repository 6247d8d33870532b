package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Generation errors
	ErrGenerationInProgress    = fmt.Errorf("generation already in progress")
	ErrInvalidRequest          = fmt.Errorf("invalid generation request")
	ErrDirectoryCreationFailed = fmt.Errorf("staging directory creation failed")
	ErrSourceDownloadFailed    = fmt.Errorf("source download failed")
	ErrAssemblyWriteFailed     = fmt.Errorf("assembly write failed")
	ErrEmptyResult             = fmt.Errorf("unified media file is empty")
	ErrCancelled               = fmt.Errorf("generation cancelled")
	ErrDownloaderClosed        = fmt.Errorf("downloader closed")

	// Transport errors
	ErrNetworkChanged = fmt.Errorf("network changed")

	// Service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrGenerationNotFound = fmt.Errorf("generation not found")
	ErrPublishFailed      = fmt.Errorf("publish failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
