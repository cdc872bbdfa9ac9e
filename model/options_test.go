// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/pexec/model"
)

var _ = Describe("SpawnOptions", func() {
	Describe("Validate", func() {
		It("Should require a command", func() {
			Expect((&model.SpawnOptions{}).Validate()).To(MatchError(model.ErrEmptyCommand))
			Expect((&model.SpawnOptions{Command: []string{""}}).Validate()).To(MatchError(model.ErrEmptyCommand))
			Expect((&model.SpawnOptions{Command: []string{"true"}}).Validate()).To(Succeed())
		})
	})

	Describe("CommandLine", func() {
		It("Should join the argument list", func() {
			opts := &model.SpawnOptions{Command: []string{"echo", "hello", "world"}}
			Expect(opts.CommandLine()).To(Equal("echo hello world"))
		})
	})
})

var _ = Describe("StreamMode", func() {
	Describe("ParseStreamMode", func() {
		It("Should parse known modes", func() {
			m, err := model.ParseStreamMode("inherit")
			Expect(err).ToNot(HaveOccurred())
			Expect(m).To(Equal(model.StreamInherit))

			m, err = model.ParseStreamMode("discard")
			Expect(err).ToNot(HaveOccurred())
			Expect(m).To(Equal(model.StreamDiscard))

			m, err = model.ParseStreamMode("pipe")
			Expect(err).ToNot(HaveOccurred())
			Expect(m).To(Equal(model.StreamPipe))
		})

		It("Should default the empty string to inherit", func() {
			m, err := model.ParseStreamMode("")
			Expect(err).ToNot(HaveOccurred())
			Expect(m).To(Equal(model.StreamInherit))
		})

		It("Should reject unknown modes", func() {
			_, err := model.ParseStreamMode("tee")
			Expect(err).To(MatchError(model.ErrUnknownStreamMode))
		})
	})

	Describe("String", func() {
		It("Should render mode names", func() {
			Expect(model.StreamInherit.String()).To(Equal("inherit"))
			Expect(model.StreamDiscard.String()).To(Equal("discard"))
			Expect(model.StreamPipe.String()).To(Equal("pipe"))
		})
	})
})

var _ = Describe("Signal", func() {
	Describe("ParseSignal", func() {
		It("Should parse bare and SIG prefixed names in any case", func() {
			s, err := model.ParseSignal("TERM")
			Expect(err).ToNot(HaveOccurred())
			Expect(s).To(Equal(model.SignalTerm))

			s, err = model.ParseSignal("sigkill")
			Expect(err).ToNot(HaveOccurred())
			Expect(s).To(Equal(model.SignalKill))

			s, err = model.ParseSignal("usr1")
			Expect(err).ToNot(HaveOccurred())
			Expect(s).To(Equal(model.SignalUsr1))
		})

		It("Should reject unknown signals", func() {
			_, err := model.ParseSignal("WINCH")
			Expect(err).To(MatchError(model.ErrUnknownSignal))
		})
	})

	Describe("String", func() {
		It("Should render signal names", func() {
			Expect(model.SignalTerm.String()).To(Equal("TERM"))
			Expect(model.SignalKill.String()).To(Equal("KILL"))
			Expect(model.SignalInt.String()).To(Equal("INT"))
		})
	})
})
