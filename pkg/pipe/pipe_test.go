/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pipe

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, New(0).Cap())
	assert.Equal(t, 16, New(16).Cap())
}

func TestRoundTripAcrossFillDrainCycles(t *testing.T) {
	p := New(64)

	payload := make([]byte, 64*37+13)
	rand.New(rand.NewSource(1)).Read(payload)

	go func() {
		rnd := rand.New(rand.NewSource(2))
		rest := payload
		for len(rest) > 0 {
			n := rnd.Intn(100) + 1
			if n > len(rest) {
				n = len(rest)
			}
			if _, err := p.Write(rest[:n]); err != nil {
				p.CloseWithError(err)
				return
			}
			rest = rest[n:]
		}
		p.Close()
	}()

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	assert.Equal(t, len(payload), len(got))
	assert.True(t, bytes.Equal(payload, got), "bytes were reordered or lost")
}

func TestErrorAfterBufferedBytes(t *testing.T) {
	p := New(32)
	boom := errors.New("boom")

	n, err := p.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, 10, n)
	p.CloseWithError(boom)

	buf := make([]byte, 4)
	var got []byte
	for {
		n, err := p.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			assert.Equal(t, boom, err)
			break
		}
	}
	assert.Equal(t, "0123456789", string(got))

	// The error is sticky.
	_, err = p.Read(buf)
	assert.Equal(t, boom, err)
}

func TestFirstErrorWins(t *testing.T) {
	p := New(8)
	first, second := errors.New("first"), errors.New("second")
	p.CloseWithError(first)
	p.CloseWithError(second)
	assert.Equal(t, first, p.Err())

	_, err := p.Write([]byte("x"))
	assert.Equal(t, first, err)
}

func TestCloseSignalsEOF(t *testing.T) {
	p := New(8)
	_, err := p.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	_, err = p.Write([]byte("d"))
	assert.Equal(t, io.ErrClosedPipe, err)
}

func TestWriterBlocksWhileFull(t *testing.T) {
	p := New(4)
	done := make(chan error, 1)
	go func() {
		_, err := p.Write([]byte("abcdefgh"))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("write of 8 bytes into a 4 byte pipe returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 8)
	var got []byte
	for len(got) < 8 {
		n, err := p.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	require.NoError(t, <-done)
	assert.Equal(t, "abcdefgh", string(got))
}

func TestReaderUnblockedByError(t *testing.T) {
	p := New(4)
	boom := errors.New("reset")
	done := make(chan error, 1)
	go func() {
		_, err := p.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.CloseWithError(boom)

	select {
	case err := <-done:
		assert.Equal(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("reader stayed blocked after the error slot was set")
	}
}

func TestCloseReadUnblocksWriter(t *testing.T) {
	p := New(2)
	done := make(chan error, 1)
	go func() {
		_, err := p.Write([]byte("abcdef"))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Reader().Close())

	select {
	case err := <-done:
		assert.Equal(t, io.ErrClosedPipe, err)
	case <-time.After(time.Second):
		t.Fatal("writer stayed blocked after the reader went away")
	}
	assert.Equal(t, 0, p.Buffered())
}
