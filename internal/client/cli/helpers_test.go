package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophauth/internal/client/iocli"
	"github.com/iudanet/gophauth/pkg/api"
)

// newTestIO возвращает терминал с заранее заданным вводом и буфер его вывода
func newTestIO(inputs, passwords []string) (*iocli.IOMock, *bytes.Buffer) {
	out := &bytes.Buffer{}
	next := func(queue *[]string) (string, error) {
		if len(*queue) == 0 {
			return "", errors.New("EOF")
		}
		v := (*queue)[0]
		*queue = (*queue)[1:]
		return v, nil
	}

	mockIO := &iocli.IOMock{
		PrintlnFunc: func(a ...any) {
			fmt.Fprintln(out, a...)
		},
		PrintfFunc: func(format string, a ...any) {
			fmt.Fprintf(out, format, a...)
		},
		WriteFunc: func(p []byte) (int, error) {
			return out.Write(p)
		},
		ReadInputFunc: func(string) (string, error) {
			return next(&inputs)
		},
		ReadPasswordFunc: func(string) (string, error) {
			return next(&passwords)
		},
	}
	return mockIO, out
}

// discardIO - терминал без ввода, вывод не проверяется
func discardIO() *iocli.IOMock {
	mockIO, _ := newTestIO(nil, nil)
	return mockIO
}

// fakeAPI - mock implementation of API
type fakeAPI struct {
	err error

	signupReq  *api.SignupRequest
	signinReq  *api.SigninRequest
	tokensSeen []string
}

func testAuthResponse(email string) *api.AuthResponse {
	return &api.AuthResponse{
		User: api.UserResponse{
			ID:        "user-123",
			Email:     email,
			CreatedAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		Tokens: api.TokenResponse{
			AccessToken:      "access-new",
			RefreshToken:     "refresh-new",
			TokenType:        "Bearer",
			ExpiresIn:        900,
			RefreshExpiresIn: 604800,
		},
	}
}

func (f *fakeAPI) Signup(_ context.Context, req api.SignupRequest) (*api.AuthResponse, error) {
	f.signupReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return testAuthResponse(req.Email), nil
}

func (f *fakeAPI) Signin(_ context.Context, req api.SigninRequest) (*api.AuthResponse, error) {
	f.signinReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return testAuthResponse(req.Email), nil
}

func (f *fakeAPI) Refresh(_ context.Context, refreshToken string) (*api.TokenResponse, error) {
	f.tokensSeen = append(f.tokensSeen, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return &testAuthResponse("").Tokens, nil
}

func (f *fakeAPI) Signout(_ context.Context, accessToken string) error {
	f.tokensSeen = append(f.tokensSeen, accessToken)
	return f.err
}

func (f *fakeAPI) Me(_ context.Context, accessToken string) (*api.UserResponse, error) {
	f.tokensSeen = append(f.tokensSeen, accessToken)
	if f.err != nil {
		return nil, f.err
	}
	return &testAuthResponse("alice@example.com").User, nil
}
