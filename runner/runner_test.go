// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/model/modelmocks"
)

func TestRunner(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Runner")
}

type capturingReporter struct {
	events []*model.RunEvent
}

func (r *capturingReporter) Publish(_ context.Context, event *model.RunEvent) error {
	r.events = append(r.events, event)
	return nil
}

var _ = Describe("Runner", func() {
	var (
		mockctl *gomock.Controller
		logger  *modelmocks.MockLogger
		runner  *Runner
		ctx     context.Context
		err     error
	)

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewLogger(mockctl)
		ctx = context.Background()

		runner, err = NewRunner(logger, logger)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	Describe("Run", func() {
		It("Should run a command and record its event", func() {
			res, err := runner.Run(ctx, &model.SpawnOptions{Name: "ok", Command: []string{"true"}})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.OK()).To(BeTrue())

			events, err := runner.History().AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Name).To(Equal("ok"))
			Expect(events[0].Result.Success).To(BeTrue())
		})

		It("Should reject empty commands", func() {
			_, err := runner.Run(ctx, &model.SpawnOptions{})
			Expect(err).To(MatchError(model.ErrEmptyCommand))
		})

		It("Should convert start failures into results", func() {
			res, err := runner.Run(ctx, &model.SpawnOptions{Name: "missing", Command: []string{"/nonexistent/command"}})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Failed()).To(BeTrue())
			Expect(res.StartError()).To(HaveOccurred())

			code, ok := res.ExitCode()
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(model.StartFailureExitCode))

			events, err := runner.History().AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Result.StartError).ToNot(BeEmpty())
		})

		It("Should mark runs as timed out even when terminate succeeds", func() {
			runner, err = NewRunner(logger, logger, WithTerminateGrace(time.Second))
			Expect(err).ToNot(HaveOccurred())

			// sleep exits on the first TERM so no escalation happens,
			// the deadline overrun must still be visible in the result
			res, err := runner.Run(ctx, &model.SpawnOptions{
				Command: []string{"sleep", "10"},
				Timeout: 200 * time.Millisecond,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.TimedOut()).To(BeTrue())
			Expect(res.Failed()).To(BeTrue())
			Expect(res.Signaled()).To(BeTrue())
		})

		It("Should escalate terminate then kill on timeout", func() {
			runner, err = NewRunner(logger, logger, WithTerminateGrace(200*time.Millisecond))
			Expect(err).ToNot(HaveOccurred())

			start := time.Now()
			res, err := runner.Run(ctx, &model.SpawnOptions{
				Command: []string{"sh", "-c", `trap "" TERM; sleep 10`},
				Timeout: 500 * time.Millisecond,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
			Expect(res.TimedOut()).To(BeTrue())
			Expect(res.Failed()).To(BeTrue())
			Expect(res.Signaled()).To(BeTrue())
		})

		It("Should merge runner level environment entries", func() {
			runner, err = NewRunner(logger, logger, WithEnvironment("PEXEC_TEST_VALUE=hello"))
			Expect(err).ToNot(HaveOccurred())

			res, err := runner.Run(ctx, &model.SpawnOptions{
				Command:    []string{"sh", "-c", "echo $PEXEC_TEST_VALUE"},
				StdoutMode: model.StreamPipe,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.StdoutLines()).To(Equal([]string{"hello"}))
		})

		It("Should write provided stdin data and close the pipe", func() {
			res, err := runner.Run(ctx, &model.SpawnOptions{
				Command:    []string{"cat"},
				Stdin:      []byte("hello\n"),
				StdoutMode: model.StreamPipe,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.OK()).To(BeTrue())
			Expect(res.StdoutLines()).To(Equal([]string{"hello"}))
		})

		It("Should publish events to the reporter", func() {
			reporter := &capturingReporter{}

			runner, err = NewRunner(logger, logger, WithReporter(reporter))
			Expect(err).ToNot(HaveOccurred())

			_, err = runner.Run(ctx, &model.SpawnOptions{Name: "reported", Command: []string{"true"}})
			Expect(err).ToNot(HaveOccurred())
			Expect(reporter.events).To(HaveLen(1))
			Expect(reporter.events[0].Name).To(Equal("reported"))
			Expect(reporter.events[0].Protocol).To(Equal(model.RunEventProtocol))
		})
	})

	Describe("Shell", func() {
		It("Should split using shell quoting rules without invoking a shell", func() {
			res, err := runner.Shell(ctx, `echo "hello world"`)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.OK()).To(BeTrue())
			Expect(res.StdoutLines()).To(Equal([]string{"hello world"}))
		})

		It("Should fail on unbalanced quotes", func() {
			_, err := runner.Shell(ctx, `echo "unterminated`)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("NewController", func() {
		It("Should hand the caller an unrecorded controller", func() {
			ctl, err := runner.NewController(&model.SpawnOptions{Command: []string{"true"}})
			Expect(err).ToNot(HaveOccurred())

			res, err := ctl.Result(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.OK()).To(BeTrue())

			events, err := runner.History().AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})
})
