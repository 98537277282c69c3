package logger_test

import (
	"bytes"
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/dispatch/common/logger"
)

var _ = Describe("LogFields", func() {
	It("merges newer values over older ones", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			Platform:  logger.Ptr("linear"),
			Component: "dispatch.http.webhook",
		})
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			SessionID: logger.Ptr("session-1"),
			Component: "dispatch.session.driver",
		})

		fields := logger.GetLogFields(ctx)
		Expect(*fields.Platform).To(Equal("linear"))
		Expect(*fields.SessionID).To(Equal("session-1"))
		Expect(fields.Component).To(Equal("dispatch.session.driver"))
	})

	It("returns empty fields for a bare context", func() {
		Expect(logger.GetLogFields(context.Background())).To(Equal(logger.LogFields{}))
	})
})

var _ = Describe("TraceHandler", func() {
	It("adds context fields to every record", func() {
		buf := &bytes.Buffer{}
		log := slog.New(logger.NewTraceHandler(slog.NewJSONHandler(buf, nil)))

		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			SessionID:  logger.Ptr("session-abc"),
			DeliveryID: logger.Ptr(int64(42)),
			AgentID:    logger.Ptr("triage"),
			IssueID:    logger.Ptr("ISS-1"),
			EventType:  logger.Ptr("issue_created"),
		})
		log.InfoContext(ctx, "hello")

		out := buf.String()
		Expect(out).To(ContainSubstring(`"session_id":"session-abc"`))
		Expect(out).To(ContainSubstring(`"delivery_id":42`))
		Expect(out).To(ContainSubstring(`"agent_id":"triage"`))
		Expect(out).To(ContainSubstring(`"issue_id":"ISS-1"`))
		Expect(out).To(ContainSubstring(`"event_type":"issue_created"`))
	})
})

var _ = Describe("Truncate", func() {
	It("keeps short strings", func() {
		Expect(logger.Truncate("abc", 5)).To(Equal("abc"))
	})

	It("cuts long strings", func() {
		Expect(logger.Truncate("abcdef", 3)).To(Equal("abc..."))
	})
})
