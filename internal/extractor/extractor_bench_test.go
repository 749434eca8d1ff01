package extractor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
)

// BenchmarkNCBIExtract measures records/second for a 1 000-sample document.
func BenchmarkNCBIExtract(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("<BioSampleSet>")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, `<BioSample id="%d"><Attributes>`, i)
		for j := 0; j < 10; j++ {
			fmt.Fprintf(&sb, `<Attribute attribute_name="key_%d">value %d</Attribute>`, j, i*j)
		}
		sb.WriteString("</Attributes></BioSample>")
	}
	sb.WriteString("</BioSampleSet>")
	doc := sb.String()
	ex, _ := ForSchema(record.SchemaNCBI)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := ex.Extract(context.Background(), strings.NewReader(doc), func(record.AttributeRecord) error { return nil })
		if err != nil {
			b.Fatal(err)
		}
	}
}
