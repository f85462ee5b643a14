package notify

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buffer", Ordered, func() {
	Context("buffer", func() {
		It("add successfully", func() {
			buffer := newBuffer()

			buffer.PushBack(&message{Envelope: Envelope{TargetID: "1"}})
			Expect(buffer.Size()).To(Equal(1))
			Expect(buffer.head).NotTo(BeNil())
			Expect(buffer.tail).NotTo(BeNil())

			buffer.PushBack(&message{Envelope: Envelope{TargetID: "2"}})
			Expect(buffer.Size()).To(Equal(2))
			Expect(buffer.head.Envelope.TargetID).To(Equal("1"))
			Expect(buffer.tail.Envelope.TargetID).To(Equal("2"))

			buffer.PushBack(&message{Envelope: Envelope{TargetID: "3"}})
			Expect(buffer.Size()).To(Equal(3))
			Expect(buffer.head.Envelope.TargetID).To(Equal("1"))
			Expect(buffer.tail.Envelope.TargetID).To(Equal("3"))
		})

		It("pop", func() {
			buffer := newBuffer()

			buffer.PushBack(&message{Envelope: Envelope{TargetID: "1"}})
			buffer.PushBack(&message{Envelope: Envelope{TargetID: "2"}})
			buffer.PushBack(&message{Envelope: Envelope{TargetID: "3"}})
			Expect(buffer.Size()).To(Equal(3))

			m := buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Envelope.TargetID).To(Equal("1"))
			Expect(buffer.Size()).To(Equal(2))

			m = buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Envelope.TargetID).To(Equal("2"))
			Expect(buffer.Size()).To(Equal(1))

			m = buffer.Pop()
			Expect(m).NotTo(BeNil())
			Expect(m.Envelope.TargetID).To(Equal("3"))
			Expect(buffer.Size()).To(Equal(0))
			Expect(buffer.head).To(BeNil())
			Expect(buffer.tail).To(BeNil())

			m = buffer.Pop()
			Expect(m).To(BeNil())
		})
	})
})
