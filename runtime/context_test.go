// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package runtime_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/pexec/runtime"
)

func TestRuntime(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Runtime")
}

var _ = Describe("Context", func() {
	Describe("Detect", func() {
		It("Should detect agent mode from the environment", func() {
			c := runtime.Detect([]string{"PEXEC_AGENT=1"}, nil)
			Expect(c.AgentMode()).To(BeTrue())

			c = runtime.Detect([]string{"CLAUDECODE=1"}, nil)
			Expect(c.AgentMode()).To(BeTrue())

			c = runtime.Detect([]string{"HOME=/root"}, nil)
			Expect(c.AgentMode()).To(BeFalse())
		})

		It("Should not be interactive without a terminal", func() {
			c := runtime.Detect([]string{}, nil)
			Expect(c.Interactive()).To(BeFalse())
		})

		It("Should never be interactive in CI", func() {
			c := runtime.Detect([]string{"CI=true"}, nil)
			Expect(c.Interactive()).To(BeFalse())
		})
	})

	Describe("WithCall", func() {
		It("Should append to a copy of the call tree", func() {
			root := runtime.Detect([]string{}, nil)
			child := root.WithCall("build").WithCall("install")

			Expect(root.CallTree()).To(BeEmpty())
			Expect(child.CallTree()).To(Equal([]string{"build", "install"}))
		})

		It("Should preserve mode flags", func() {
			root := runtime.Detect([]string{"PEXEC_AGENT=1"}, nil)
			Expect(root.WithCall("x").AgentMode()).To(BeTrue())
		})
	})
})
