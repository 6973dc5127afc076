// Copyright 2026 The rvos Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kerr contains kernel error codes exported as error interface
// pointers. This allows for fast comparison and return operations.
package kerr

import (
	goerrors "errors"

	"rvos.dev/rvos/pkg/errors"
)

// Error numbers, as in include/uapi/asm-generic/errno-base.h.
const (
	errnoEPERM   errors.Errno = 1
	errnoENOEXEC errors.Errno = 8
	errnoEAGAIN  errors.Errno = 11
	errnoENOMEM  errors.Errno = 12
	errnoEFAULT  errors.Errno = 14
	errnoEBUSY   errors.Errno = 16
	errnoEEXIST  errors.Errno = 17
	errnoEINVAL  errors.Errno = 22
	errnoERANGE  errors.Errno = 34
	errnoENOSYS  errors.Errno = 38
	errnoEIO     errors.Errno = 5
)

// The following errors are returned by kernel components. Compare with ==,
// or with Equals when the error may be wrapped.
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(errnoEPERM, "operation not permitted")
	EIO                   = errors.New(errnoEIO, "I/O error")
	ENOEXEC               = errors.New(errnoENOEXEC, "exec format error")
	EAGAIN                = errors.New(errnoEAGAIN, "try again")
	ENOMEM                = errors.New(errnoENOMEM, "out of memory")
	EFAULT                = errors.New(errnoEFAULT, "bad address")
	EBUSY                 = errors.New(errnoEBUSY, "device or resource busy")
	EEXIST                = errors.New(errnoEEXIST, "file exists")
	EINVAL                = errors.New(errnoEINVAL, "invalid argument")
	ERANGE                = errors.New(errnoERANGE, "math result not representable")
	ENOSYS                = errors.New(errnoENOSYS, "invalid system call number")
)

var errnoTable = map[errors.Errno]*errors.Error{
	0:            noError,
	errnoEPERM:   EPERM,
	errnoEIO:     EIO,
	errnoENOEXEC: ENOEXEC,
	errnoEAGAIN:  EAGAIN,
	errnoENOMEM:  ENOMEM,
	errnoEFAULT:  EFAULT,
	errnoEBUSY:   EBUSY,
	errnoEEXIST:  EEXIST,
	errnoEINVAL:  EINVAL,
	errnoERANGE:  ERANGE,
	errnoENOSYS:  ENOSYS,
}

// FromErrno returns the *errors.Error for e, or nil and false if the number
// is not known to the kernel.
func FromErrno(e errors.Errno) (*errors.Error, bool) {
	err, ok := errnoTable[e]
	return err, ok
}

// Equals compares an *errors.Error to a generic error, unwrapping err as
// needed.
func Equals(e *errors.Error, err error) bool {
	if e == nil {
		return err == nil
	}
	var target *errors.Error
	if !goerrors.As(err, &target) {
		return false
	}
	return target == e
}

// ToErrno returns the kernel error number carried by err. Errors without one
// map to EINVAL.
func ToErrno(err error) errors.Errno {
	if err == nil {
		return 0
	}
	var target *errors.Error
	if goerrors.As(err, &target) {
		return target.Errno()
	}
	return errnoEINVAL
}
