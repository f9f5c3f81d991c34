package protocol

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("UTF8Decoder", func() {
	It("passes complete ASCII through unchanged", func() {
		var d UTF8Decoder
		Expect(d.Write([]byte("hello"))).To(Equal("hello"))
		Expect(d.Flush()).To(BeEmpty())
	})

	It("holds back a multi-byte character split across writes", func() {
		var d UTF8Decoder
		raw := []byte("héllo") // é is two bytes
		Expect(d.Write(raw[:2])).To(Equal("h"))
		Expect(d.Write(raw[2:])).To(Equal("éllo"))
		Expect(d.Flush()).To(BeEmpty())
	})

	It("reassembles a three-way split of a four-byte rune", func() {
		var d UTF8Decoder
		raw := []byte("a🎉b") // 🎉 is four bytes
		Expect(d.Write(raw[:2])).To(Equal("a"))
		Expect(d.Write(raw[2:4])).To(BeEmpty())
		Expect(d.Write(raw[4:])).To(Equal("🎉b"))
	})

	It("never emits a replacement character for a merely-split rune", func() {
		var d UTF8Decoder
		raw := []byte("日本語")
		var out string
		for _, b := range raw {
			out += d.Write([]byte{b})
		}
		out += d.Flush()
		Expect(out).To(Equal("日本語"))
	})

	It("surfaces a truncated rune at end of stream via Flush", func() {
		var d UTF8Decoder
		raw := []byte("é")
		Expect(d.Write(raw[:1])).To(BeEmpty())
		Expect(d.Flush()).NotTo(BeEmpty())
		Expect(d.Flush()).To(BeEmpty())
	})
})
