/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */


package service

import liberr "github.com/sabouaram/zeroipc/errors"

const (
	ErrorAlreadyExists liberr.CodeError = iota + liberr.MinPkgService
	ErrorBeingCreated
	ErrorHangsInCreation
	ErrorDoesNotExist
	ErrorCorrupted
	ErrorIncompatibleTypes
	ErrorIncompatibleRequestType
	ErrorIncompatibleResponseType
	ErrorIncompatibleAttributes
	ErrorIncompatiblePattern
	ErrorUnsupportedAmountOfPublishers
	ErrorUnsupportedAmountOfSubscribers
	ErrorUnsupportedAmountOfNotifiers
	ErrorUnsupportedAmountOfListeners
	ErrorUnsupportedAmountOfClients
	ErrorUnsupportedAmountOfServers
	ErrorUnsupportedAmountOfNodes
	ErrorExceedsMaxNodes
	ErrorExceedsMaxPorts
	ErrorVersionMismatch
	ErrorPermissions
	ErrorNoEntriesProvided
	ErrorInternal
)

func init() {
	if liberr.ExistInMapMessage(ErrorAlreadyExists) {
		panic("service: error code space already registered")
	}
	liberr.RegisterIdFctMessage(ErrorAlreadyExists, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorAlreadyExists:
		return "service already exists"
	case ErrorBeingCreated:
		return "service is being created by another instance"
	case ErrorHangsInCreation:
		return "service creation never completed"
	case ErrorDoesNotExist:
		return "service does not exist"
	case ErrorCorrupted:
		return "service is in a corrupted state"
	case ErrorIncompatibleTypes:
		return "payload or user header type identity mismatch"
	case ErrorIncompatibleRequestType:
		return "request type identity mismatch"
	case ErrorIncompatibleResponseType:
		return "response type identity mismatch"
	case ErrorIncompatibleAttributes:
		return "service does not satisfy the attribute requirements"
	case ErrorIncompatiblePattern:
		return "service exists with another messaging pattern"
	case ErrorUnsupportedAmountOfPublishers:
		return "service does not support the requested amount of publishers"
	case ErrorUnsupportedAmountOfSubscribers:
		return "service does not support the requested amount of subscribers"
	case ErrorUnsupportedAmountOfNotifiers:
		return "service does not support the requested amount of notifiers"
	case ErrorUnsupportedAmountOfListeners:
		return "service does not support the requested amount of listeners"
	case ErrorUnsupportedAmountOfClients:
		return "service does not support the requested amount of clients"
	case ErrorUnsupportedAmountOfServers:
		return "service does not support the requested amount of servers"
	case ErrorUnsupportedAmountOfNodes:
		return "service does not support the requested amount of nodes"
	case ErrorExceedsMaxNodes:
		return "service node capacity exhausted"
	case ErrorExceedsMaxPorts:
		return "service port capacity exhausted for this kind"
	case ErrorVersionMismatch:
		return "service written by an incompatible library version"
	case ErrorPermissions:
		return "insufficient permissions on service resources"
	case ErrorNoEntriesProvided:
		return "no entries provided for the blackboard service"
	case ErrorInternal:
		return "internal service failure"
	}

	return ""
}
