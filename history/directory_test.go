// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pexec/model"
	"github.com/choria-io/pexec/model/modelmocks"
)

func TestHistory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "History")
}

var _ = Describe("DirectoryStore", func() {
	var (
		mockctl *gomock.Controller
		logger  *modelmocks.MockLogger
		dir     string
		store   *DirectoryStore
		err     error
	)

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewLogger(mockctl)
		dir = GinkgoT().TempDir()

		store, err = NewDirectoryStore(dir, logger)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	event := func(name string) *model.RunEvent {
		return model.NewRunEvent(name, model.NewStartFailureResult(os.ErrNotExist, []string{"x"}, nil))
	}

	Describe("NewDirectoryStore", func() {
		It("Should reject an empty directory", func() {
			_, err := NewDirectoryStore("", logger)
			Expect(err).To(MatchError("history directory path cannot be empty"))
		})

		It("Should create the directory", func() {
			path := filepath.Join(dir, "sub", "store")
			_, err := NewDirectoryStore(path, logger)
			Expect(err).ToNot(HaveOccurred())

			stat, err := os.Stat(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(stat.IsDir()).To(BeTrue())
		})
	})

	Describe("RecordEvent", func() {
		It("Should write one file per event", func() {
			e := event("first")
			Expect(store.RecordEvent(e)).To(Succeed())

			entries, err := os.ReadDir(dir)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal(e.EventID + ".event"))
		})

		It("Should reject event ids that are not ksuids", func() {
			e := event("bad")
			e.EventID = "../escape"
			Expect(store.RecordEvent(e)).To(MatchError(ContainSubstring("invalid event ID")))
		})
	})

	Describe("AllEvents", func() {
		It("Should round trip events oldest first", func() {
			first := event("first")
			second := event("second")

			Expect(store.RecordEvent(first)).To(Succeed())
			Expect(store.RecordEvent(second)).To(Succeed())

			events, err := store.AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(2))
			Expect(events[0].EventID).To(Equal(first.EventID))
			Expect(events[1].EventID).To(Equal(second.EventID))
			Expect(events[0].Name).To(Equal("first"))
			Expect(events[0].Result.StartError).ToNot(BeEmpty())

			res := model.FromStructured(events[0].Result)
			Expect(res.Failed()).To(BeTrue())
		})

		It("Should skip files that are not events", func() {
			Expect(os.WriteFile(filepath.Join(dir, "junk.txt"), []byte("x"), 0644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "bad.event"), []byte("not json"), 0644)).To(Succeed())

			events, err := store.AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})

	Describe("Prune", func() {
		It("Should remove all events and report the count", func() {
			Expect(store.RecordEvent(event("a"))).To(Succeed())
			Expect(store.RecordEvent(event("b"))).To(Succeed())

			removed, err := store.Prune()
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(Equal(2))

			events, err := store.AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})
})

var _ = Describe("MemoryStore", func() {
	var (
		mockctl *gomock.Controller
		store   *MemoryStore
	)

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())

		var err error
		store, err = NewMemoryStore(modelmocks.NewLogger(mockctl))
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	It("Should record, list and prune events", func() {
		e := model.NewRunEvent("x", model.NewStartFailureResult(os.ErrNotExist, []string{"x"}, nil))
		Expect(store.RecordEvent(e)).To(Succeed())

		events, err := store.AllEvents()
		Expect(err).ToNot(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0]).To(BeIdenticalTo(e))

		removed, err := store.Prune()
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(Equal(1))

		events, err = store.AllEvents()
		Expect(err).ToNot(HaveOccurred())
		Expect(events).To(BeEmpty())
	})
})
