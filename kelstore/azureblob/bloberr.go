package azureblob

import (
	"errors"

	azStorageBlob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const (
	codeBlobNotFound      = "BlobNotFound"
	codeBlobAlreadyExists = "BlobAlreadyExists"
	codeConditionNotMet   = "ConditionNotMet"
)

// ErrBlobNotFound is this package's translation of the Azure SDK's
// BlobNotFound storage error, mirroring massifs.ErrBlobNotFound /
// WrapBlobNotFound's pattern of never leaking a raw *azStorageBlob.
// InternalError past this package's boundary.
var ErrBlobNotFound = errors.New("azureblob: blob not found")

// asStorageError recovers the azure SDK's StorageError out of err, same as
// massifs.AsStorageError.
func asStorageError(err error) (azStorageBlob.StorageError, bool) {
	serr := &azStorageBlob.StorageError{}
	ierr, ok := err.(*azStorageBlob.InternalError)
	if ierr == nil || !ok {
		return azStorageBlob.StorageError{}, false
	}
	if !ierr.As(&serr) {
		return azStorageBlob.StorageError{}, false
	}
	return *serr, true
}

func isBlobNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBlobNotFound) {
		return true
	}
	serr, ok := asStorageError(err)
	return ok && serr.ErrorCode == codeBlobNotFound
}

// isAlreadyExists reports whether err is the precondition-failure Azure
// returns for a conditional write: WithEtagNoneMatch("*") racing an existing
// blob (BlobAlreadyExists) or WithEtagMatch(etag) racing a concurrent
// updater (ConditionNotMet).
func isAlreadyExists(err error) bool {
	serr, ok := asStorageError(err)
	if !ok {
		return false
	}
	return serr.ErrorCode == codeBlobAlreadyExists || serr.ErrorCode == codeConditionNotMet
}
