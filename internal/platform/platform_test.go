package platform_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/dispatch/internal/domain"
	"basegraph.app/dispatch/internal/platform"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string                              { return s.name }
func (s *stubAdapter) SignatureHeader() string                   { return "X-Sig" }
func (s *stubAdapter) Verify([]byte, string) bool                { return true }
func (s *stubAdapter) ShouldProcess(domain.NormalizedEvent) bool { return true }
func (s *stubAdapter) Parse([]byte) (*domain.NormalizedEvent, error) {
	return nil, nil
}
func (s *stubAdapter) Respond(context.Context, domain.SessionContext, string) error { return nil }
func (s *stubAdapter) GetIssue(context.Context, string) (*domain.NormalizedIssue, error) {
	return nil, nil
}
func (s *stubAdapter) GetConversationHistory(context.Context, string) ([]domain.ConversationMessage, error) {
	return nil, nil
}

type reportingAdapter struct {
	stubAdapter
	activities []domain.Activity
}

func (r *reportingAdapter) ReportActivity(_ context.Context, _ domain.SessionContext, a domain.Activity) error {
	r.activities = append(r.activities, a)
	return nil
}

func (r *reportingAdapter) DeliveryID(h http.Header) string {
	return h.Get("X-Delivery")
}

var _ = Describe("Registry", func() {
	It("resolves registered adapters by name", func() {
		reg := platform.NewRegistry(&stubAdapter{name: "linear"}, &stubAdapter{name: "gitlab"})

		a, err := reg.Get("linear")
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Name()).To(Equal("linear"))
		Expect(reg.Names()).To(Equal([]string{"gitlab", "linear"}))
	})

	It("returns ErrUnknownPlatform for anything else", func() {
		reg := platform.NewRegistry()
		_, err := reg.Get("jira")
		Expect(err).To(MatchError(platform.ErrUnknownPlatform))
	})
})

var _ = Describe("optional capabilities", func() {
	ctx := context.Background()

	It("treats activity reporting as a no-op when unsupported", func() {
		err := platform.ReportActivity(ctx, &stubAdapter{name: "x"}, domain.SessionContext{}, domain.Activity{Type: domain.ActivityThinking})
		Expect(err).NotTo(HaveOccurred())
	})

	It("relays activities to capable adapters", func() {
		a := &reportingAdapter{stubAdapter: stubAdapter{name: "x"}}
		Expect(platform.ReportActivity(ctx, a, domain.SessionContext{}, domain.Activity{Type: domain.ActivityError, Message: "boom"})).To(Succeed())
		Expect(a.activities).To(HaveLen(1))
		Expect(a.activities[0].Message).To(Equal("boom"))
	})

	It("extracts delivery ids only from capable adapters", func() {
		h := http.Header{}
		h.Set("X-Delivery", "abc")
		Expect(platform.DeliveryID(&stubAdapter{}, h)).To(BeEmpty())
		Expect(platform.DeliveryID(&reportingAdapter{}, h)).To(Equal("abc"))
	})
})

var _ = Describe("signatures", func() {
	body := []byte(`{"type":"Issue"}`)

	It("accepts a matching HMAC", func() {
		sig := platform.SignHMACSHA256("s3cret", body)
		Expect(platform.VerifyHMACSHA256("s3cret", body, sig)).To(BeTrue())
		Expect(platform.VerifyHMACSHA256("s3cret", body, "sha256="+sig)).To(BeTrue())
	})

	It("rejects a mismatched or missing HMAC", func() {
		Expect(platform.VerifyHMACSHA256("s3cret", body, platform.SignHMACSHA256("other", body))).To(BeFalse())
		Expect(platform.VerifyHMACSHA256("s3cret", body, "")).To(BeFalse())
	})

	It("is permissive without a secret", func() {
		Expect(platform.VerifyHMACSHA256("", body, "")).To(BeTrue())
		Expect(platform.VerifyToken("", "")).To(BeTrue())
	})

	It("compares tokens", func() {
		Expect(platform.VerifyToken("tok", "tok")).To(BeTrue())
		Expect(platform.VerifyToken("tok", "tok2")).To(BeFalse())
	})
})
