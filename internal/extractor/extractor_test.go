package extractor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

const ncbiDoc = `<?xml version="1.0" encoding="UTF-8"?>
<BioSampleSet>
  <BioSample id="1001" accession="SAMN1001">
    <Attributes>
      <Attribute attribute_name="sex" harmonized_name="sex" display_name="sex">male</Attribute>
      <Attribute attribute_name="geo_loc_name">Canada: Toronto</Attribute>
      <Attribute harmonized_name="orphan">dropped</Attribute>
      <Attribute attribute_name="strain"></Attribute>
    </Attributes>
  </BioSample>
  <BioSample accession="SAMN_NO_ID">
    <Attributes><Attribute attribute_name="sex">female</Attribute></Attributes>
  </BioSample>
  <BioSample id="1002">
    <Attributes>
      <Attribute attribute_name="sex">female</Attribute>
    </Attributes>
  </BioSample>
</BioSampleSet>`

const ebiDoc = `<?xml version="1.0" encoding="UTF-8"?>
<BioSampleGroup xmlns="http://www.ebi.ac.uk/biosamples/SampleGroupExport/1.0">
  <BioSample id="SAMEA1">
    <Property class="organism" type="STRING" characteristic="true" comment="false">
      <QualifiedValue>
        <Value>Homo sapiens</Value>
        <TermSourceREF>
          <Name>NCBI Taxonomy</Name>
          <URI>http://www.ncbi.nlm.nih.gov/taxonomy/</URI>
          <TermSourceID>9606</TermSourceID>
        </TermSourceREF>
      </QualifiedValue>
      <QualifiedValue>
        <Value>human</Value>
      </QualifiedValue>
    </Property>
    <Property class="Sample Name" type="STRING">
      <QualifiedValue><Value>sample-a</Value></QualifiedValue>
    </Property>
    <Property type="STRING">
      <QualifiedValue><Value>no class</Value></QualifiedValue>
    </Property>
    <Property class="empty"/>
  </BioSample>
</BioSampleGroup>`

func gzipped(t *testing.T, doc string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := zw.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func collect(t *testing.T, schema record.Schema, doc string) ([]record.AttributeRecord, Stats) {
	t.Helper()
	ex, err := ForSchema(schema)
	require.NoError(t, err)
	var recs []record.AttributeRecord
	stats, err := ExtractGzip(context.Background(), ex, gzipped(t, doc), func(rec record.AttributeRecord) error {
		recs = append(recs, rec)
		return nil
	})
	require.NoError(t, err)
	return recs, stats
}

func TestNCBIExtraction(t *testing.T) {
	recs, stats := collect(t, record.SchemaNCBI, ncbiDoc)

	require.Len(t, recs, 4)
	assert.Equal(t, Stats{Samples: 2, Records: 4, SkippedMissingKey: 1, SkippedMissingID: 1}, stats)

	assert.Equal(t, "1001", recs[0].SampleID)
	assert.Equal(t, "sex", recs[0].Key)
	require.NotNil(t, recs[0].Value)
	assert.Equal(t, "male", *recs[0].Value)
	assert.Equal(t, map[string]string{"harmonized_name": "sex", "display_name": "sex"}, recs[0].Attributes)

	assert.Equal(t, "Canada: Toronto", *recs[1].Value)
	assert.Nil(t, recs[1].Attributes)

	assert.Equal(t, "strain", recs[2].Key)
	assert.Nil(t, recs[2].Value, "empty element has no value")

	assert.Equal(t, "1002", recs[3].SampleID)
	assert.Empty(t, recs[3].Values)
}

func TestEBIExtraction(t *testing.T) {
	recs, stats := collect(t, record.SchemaEBI, ebiDoc)

	require.Len(t, recs, 3)
	assert.Equal(t, 1, stats.SkippedMissingKey)

	organism := recs[0]
	assert.Equal(t, "SAMEA1", organism.SampleID)
	assert.Equal(t, "organism", organism.Key)
	assert.Nil(t, organism.Value)
	assert.Equal(t, "STRING", organism.Attributes["type"])
	require.Len(t, organism.Values, 2)
	assert.Equal(t, "Homo sapiens", *organism.Values[0].Value)
	require.NotNil(t, organism.Values[0].TermSource)
	assert.Equal(t, "NCBI Taxonomy", *organism.Values[0].TermSource.Name)
	assert.Equal(t, "9606", *organism.Values[0].TermSource.TermSourceID)
	assert.Nil(t, organism.Values[1].TermSource)
	assert.Equal(t, []string{"Homo sapiens", "human"}, organism.PresentValues())

	assert.Equal(t, "Sample Name", recs[1].Key)
	assert.Equal(t, "empty", recs[2].Key)
	assert.Empty(t, recs[2].Values)
}

func TestEBIIgnoresForeignNamespace(t *testing.T) {
	doc := strings.Replace(ebiDoc, EBINamespace, "urn:other", 1)
	recs, stats := collect(t, record.SchemaEBI, doc)
	assert.Empty(t, recs)
	assert.Zero(t, stats.Samples)
}

func TestEmitErrorStopsExtraction(t *testing.T) {
	ex, err := ForSchema(record.SchemaNCBI)
	require.NoError(t, err)
	boom := errors.New("store down")
	calls := 0
	_, err = ex.Extract(context.Background(), strings.NewReader(ncbiDoc), func(record.AttributeRecord) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestMalformedXML(t *testing.T) {
	ex, err := ForSchema(record.SchemaNCBI)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), strings.NewReader(`<BioSampleSet><BioSample id="1"><Attribute attribute_name="a">x</BioSample>`), func(record.AttributeRecord) error { return nil })
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex, err := ForSchema(record.SchemaNCBI)
	require.NoError(t, err)
	_, err = ex.Extract(ctx, strings.NewReader(ncbiDoc), func(record.AttributeRecord) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForSchemaUnknown(t *testing.T) {
	_, err := ForSchema(record.Schema("gold"))
	assert.ErrorIs(t, err, apperrors.ErrUnknownSchema)
}

func TestNotGzip(t *testing.T) {
	ex, err := ForSchema(record.SchemaNCBI)
	require.NoError(t, err)
	_, err = ExtractGzip(context.Background(), ex, strings.NewReader(ncbiDoc), func(record.AttributeRecord) error { return nil })
	assert.Error(t, err)
}
