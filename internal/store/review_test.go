package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reviewhub/reviewhub/internal/config"
	"github.com/reviewhub/reviewhub/internal/store"
	"github.com/reviewhub/reviewhub/internal/store/model"
)

var _ = Describe("review store", Ordered, func() {
	var (
		s       store.Store
		ctx     context.Context
		snippet *model.CodeSnippet
	)

	BeforeEach(func() {
		ctx = context.Background()

		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		Expect(s.InitialMigration()).To(Succeed())

		snippet, err = s.Snippet().Create(ctx, model.CodeSnippet{
			Filename: "example.py",
			Content:  "def f():\n    pass\n",
			Hash:     uuid.NewString(),
		})
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	newReview := func() *model.Review {
		review, err := s.Review().Create(ctx, model.Review{CodeSnippetID: snippet.ID})
		Expect(err).To(BeNil())
		return review
	}

	Context("create and get", func() {
		It("defaults a new review to pending", func() {
			review := newReview()
			Expect(review.Status).To(Equal(model.ReviewStatusPending))

			got, err := s.Review().Get(ctx, review.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ReviewStatusPending))
			Expect(got.CodeSnippet.Content).To(Equal(snippet.Content))
		})

		It("returns ErrRecordNotFound for an unknown id", func() {
			_, err := s.Review().Get(ctx, uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("status transitions", func() {
		It("moves pending to processing", func() {
			review := newReview()
			Expect(s.Review().MarkProcessing(ctx, review.ID, time.Now().UTC())).To(Succeed())

			got, err := s.Review().Get(ctx, review.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ReviewStatusProcessing))
			Expect(got.StartedAt).NotTo(BeNil())
		})

		It("records the current stage only while processing", func() {
			review := newReview()
			Expect(s.Review().SetStage(ctx, review.ID, "Preprocessing code...")).To(MatchError(store.ErrRecordNotFound))

			Expect(s.Review().MarkProcessing(ctx, review.ID, time.Now().UTC())).To(Succeed())
			Expect(s.Review().SetStage(ctx, review.ID, "Preprocessing code...")).To(Succeed())

			got, err := s.Review().Get(ctx, review.ID)
			Expect(err).To(BeNil())
			Expect(got.ProgressStage).To(HaveValue(Equal("Preprocessing code...")))
		})

		It("completes a processing review with results", func() {
			review := newReview()
			Expect(s.Review().MarkProcessing(ctx, review.ID, time.Now().UTC())).To(Succeed())

			results := model.JSONMap{"security_report": map[string]any{"is_secure": true}}
			Expect(s.Review().Complete(ctx, review.ID, results, time.Now().UTC())).To(Succeed())

			got, err := s.Review().Get(ctx, review.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ReviewStatusCompleted))
			Expect(got.Results).NotTo(BeNil())
			Expect(got.CompletedAt).NotTo(BeNil())
			Expect(got.Terminal()).To(BeTrue())
		})

		It("refuses to complete a pending review", func() {
			review := newReview()
			err := s.Review().Complete(ctx, review.ID, model.JSONMap{}, time.Now().UTC())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("fails a processing review with the error message", func() {
			review := newReview()
			Expect(s.Review().MarkProcessing(ctx, review.ID, time.Now().UTC())).To(Succeed())
			Expect(s.Review().Fail(ctx, review.ID, "bad input", time.Now().UTC())).To(Succeed())

			got, err := s.Review().Get(ctx, review.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ReviewStatusFailed))
			Expect(*got.ErrorMessage).To(Equal("bad input"))
			Expect(got.Results).To(BeNil())
		})

		It("keeps terminal states immutable", func() {
			review := newReview()
			Expect(s.Review().MarkProcessing(ctx, review.ID, time.Now().UTC())).To(Succeed())
			Expect(s.Review().Complete(ctx, review.ID, model.JSONMap{}, time.Now().UTC())).To(Succeed())

			Expect(s.Review().MarkProcessing(ctx, review.ID, time.Now().UTC())).To(MatchError(store.ErrRecordNotFound))
			Expect(s.Review().Fail(ctx, review.ID, "late failure", time.Now().UTC())).To(MatchError(store.ErrRecordNotFound))

			got, err := s.Review().Get(ctx, review.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ReviewStatusCompleted))
		})
	})

	Context("snippets", func() {
		It("rejects a duplicate content hash", func() {
			_, err := s.Snippet().Create(ctx, model.CodeSnippet{
				Filename: "copy.py",
				Content:  snippet.Content,
				Hash:     snippet.Hash,
			})
			Expect(err).To(MatchError(store.ErrDuplicateKey))
		})

		It("persists analysis metrics", func() {
			metrics := model.SnippetMetrics{
				Loc:                  2,
				CyclomaticComplexity: 1,
				NormalizedHash:       "abc123",
				DetectedLanguage:     "Python",
			}
			Expect(s.Snippet().UpdateMetrics(ctx, snippet.ID, metrics)).To(Succeed())

			got, err := s.Snippet().Get(ctx, snippet.ID)
			Expect(err).To(BeNil())
			Expect(got.Loc).To(HaveValue(Equal(2)))
			Expect(got.CyclomaticComplexity).To(HaveValue(Equal(1)))
			Expect(got.NormalizedHash).To(HaveValue(Equal("abc123")))
			Expect(got.DetectedLanguage).To(HaveValue(Equal("Python")))
			Expect(got.FileSize).To(Equal(len(snippet.Content)))
		})
	})

	Context("transactions", func() {
		It("rolls back an uncommitted write", func() {
			txCtx, err := s.NewTransactionContext(ctx)
			Expect(err).To(BeNil())

			review, err := s.Review().Create(txCtx, model.Review{CodeSnippetID: snippet.ID})
			Expect(err).To(BeNil())

			_, err = store.Rollback(txCtx)
			Expect(err).To(BeNil())

			_, err = s.Review().Get(ctx, review.ID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("commits a transactional write", func() {
			txCtx, err := s.NewTransactionContext(ctx)
			Expect(err).To(BeNil())

			review, err := s.Review().Create(txCtx, model.Review{CodeSnippetID: snippet.ID})
			Expect(err).To(BeNil())

			_, err = store.Commit(txCtx)
			Expect(err).To(BeNil())

			got, err := s.Review().Get(ctx, review.ID)
			Expect(err).To(BeNil())
			Expect(got.ID).To(Equal(review.ID))
		})
	})
})
