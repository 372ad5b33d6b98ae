package services

import (
	"bufio"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"gohan/variantstore/errors"
	"gohan/variantstore/models/constants"
	"gohan/variantstore/models/constants/chromosome"
	"gohan/variantstore/models/constants/genotype"
	variantType "gohan/variantstore/models/constants/variant-type"
	"gohan/variantstore/models/indexes"
)

// fixed columns preceding the samples of a VCF row
var vcfHeaders = []string{"chrom", "pos", "id", "ref", "alt", "qual", "filter", "info", "format"}

// VcfReader reads the rows of a plain or bgzipped VCF. The header is read
// on construction.
type VcfReader struct {
	closer  io.Closer
	scanner *bufio.Scanner
	line    int
	Samples []string
}

type VcfRecord struct {
	Line       int
	Chromosome string
	Pos        int
	Ids        []string
	Ref        string
	Alts       []string
	Qual       float64
	Filter     string
	Info       map[string]string
	// genotype call of each sample, by column
	Genotypes []string
}

// NewVcfReader sniffs the gzip magic bytes, so bgzipped files need no
// particular extension
func NewVcfReader(r io.Reader) (*VcfReader, error) {
	buffered := bufio.NewReader(r)
	var src io.Reader = buffered
	reader := &VcfReader{}

	if magic, err := buffered.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gr, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, errors.Wrap(err, "opening gzip stream")
		}
		reader.closer = gr
		src = gr
	}

	reader.scanner = bufio.NewScanner(src)
	reader.scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	if err := reader.readHeader(); err != nil {
		reader.Close()
		return nil, err
	}
	return reader, nil
}

func (r *VcfReader) readHeader() error {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if strings.HasPrefix(line, "##") {
			continue
		}
		if !strings.HasPrefix(line, "#CHROM") {
			return errors.Errorf("line %d: expected the #CHROM header", r.line)
		}
		columns := strings.Split(line, "\t")
		if len(columns) > len(vcfHeaders) {
			r.Samples = columns[len(vcfHeaders):]
		}
		return nil
	}
	if err := r.scanner.Err(); err != nil {
		return errors.Wrap(err, "reading header")
	}
	return errors.Errorf("missing #CHROM header")
}

// Next returns the next row, or io.EOF
func (r *VcfReader) Next() (*VcfRecord, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return r.parse(line)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "line %d", r.line)
	}
	return nil, io.EOF
}

func (r *VcfReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *VcfReader) parse(line string) (*VcfRecord, error) {
	columns := strings.Split(line, "\t")
	if len(columns) < 8 {
		return nil, errors.Errorf("line %d: expected at least 8 columns, got %d", r.line, len(columns))
	}

	pos, err := strconv.Atoi(columns[1])
	if err != nil {
		return nil, errors.Wrapf(err, "line %d: bad position", r.line)
	}
	rec := &VcfRecord{
		Line:       r.line,
		Chromosome: columns[0],
		Pos:        pos,
		Ref:        columns[3],
		Alts:       strings.Split(columns[4], ","),
		Filter:     columns[6],
		Info:       map[string]string{},
	}
	if columns[2] != "." {
		rec.Ids = strings.Split(columns[2], ";")
	}
	// a missing quality is left at 0
	if q, err := strconv.ParseFloat(columns[5], 64); err == nil {
		rec.Qual = q
	}
	if columns[7] != "." {
		for _, kv := range strings.Split(columns[7], ";") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				v = "true"
			}
			rec.Info[k] = v
		}
	}

	if len(columns) > len(vcfHeaders) {
		gtIndex := -1
		for i, f := range strings.Split(columns[8], ":") {
			if f == "GT" {
				gtIndex = i
				break
			}
		}
		for _, sample := range columns[len(vcfHeaders):] {
			gt := "."
			if gtIndex >= 0 {
				if fields := strings.Split(sample, ":"); gtIndex < len(fields) {
					gt = fields[gtIndex]
				}
			}
			rec.Genotypes = append(rec.Genotypes, gt)
		}
	}
	return rec, nil
}

// classify derives the variant type from the alleles of one alternate
func classify(ref string, alt string) constants.VariantType {
	switch {
	case alt == "." || alt == "*" || alt == "<NON_REF>" || alt == "<*>":
		return variantType.NO_VARIATION
	case strings.ContainsAny(alt, "[]"):
		return variantType.BREAKEND
	case strings.HasPrefix(alt, "<"):
		switch strings.Trim(alt, "<>") {
		case "CNV":
			return variantType.CNV
		case "DUP":
			return variantType.DUPLICATION
		case "INV":
			return variantType.INVERSION
		}
		return variantType.SYMBOLIC
	case len(ref) == 1 && len(alt) == 1:
		return variantType.SNV
	case len(ref) == len(alt):
		return variantType.MNV
	}
	return variantType.INDEL
}

// decompose rewrites a call for one alternate allele: the alternate
// becomes 1, every other alternate 2.
func decompose(gt string, altIndex int) string {
	sep := "/"
	if genotype.IsPhased(gt) {
		sep = "|"
	}
	alleles := strings.FieldsFunc(gt, func(r rune) bool { return r == '/' || r == '|' })
	if len(alleles) == 0 {
		return genotype.Unknown
	}
	for i, a := range alleles {
		switch a {
		case ".", "0":
		case strconv.Itoa(altIndex):
			alleles[i] = "1"
		default:
			alleles[i] = "2"
		}
	}
	return genotype.Normalize(strings.Join(alleles, sep))
}

// Variants splits a row into one variant per alternate allele. Samples
// carrying a spelling of the default genotype are left out of the
// buckets. ok is false for rows on chromosomes that are not stored.
func (rec *VcfRecord) Variants(studyId int, fileId int, sampleIds []int, defaultClass []string) ([]*indexes.Variant, bool) {
	if !chromosome.IsValidHumanChromosome(rec.Chromosome) {
		return nil, false
	}
	chrom := chromosome.Normalize(rec.Chromosome)

	var attrs map[string]string
	if len(rec.Info) > 0 {
		attrs = rec.Info
	}

	out := make([]*indexes.Variant, 0, len(rec.Alts))
	for a, alt := range rec.Alts {
		t := classify(rec.Ref, alt)
		end := rec.Pos + len(rec.Ref) - 1
		if variantType.IsStructural(t) {
			end = rec.Pos
			if v, err := strconv.Atoi(rec.Info["END"]); err == nil {
				end = v
			}
		}

		buckets := map[string][]int{}
		for i, gt := range rec.Genotypes {
			if i >= len(sampleIds) {
				break
			}
			call := decompose(gt, a+1)
			if genotype.Contains(defaultClass, call) {
				continue
			}
			buckets[call] = append(buckets[call], sampleIds[i])
		}

		out = append(out, &indexes.Variant{
			Names:      rec.Ids,
			Chromosome: chrom,
			Start:      rec.Pos,
			End:        end,
			Reference:  rec.Ref,
			Alternate:  alt,
			Type:       t,
			Studies: []*indexes.StudyEntry{{
				StudyId: studyId,
				Files: []*indexes.FileEntry{{
					FileId:     fileId,
					Filter:     rec.Filter,
					Qual:       rec.Qual,
					Attributes: attrs,
				}},
				Genotypes: buckets,
			}},
		})
	}
	return out, true
}
