// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"fmt"
	"strconv"
	"strings"
)

// ChromPrefix is the prefix carried by UCSC style chromosome names.
const ChromPrefix = "chr"

// MaximumPosition is the first position a binning index cannot address.  It
// stands in for the end of regions that run to the end of their chromosome.
const MaximumPosition = 1 << 29

// Region defines a region of genomic interest.
type Region struct {
	// Chrom names the chromosome (or contig) of the region.
	Chrom string
	// Start and End specify the one-based, inclusive range (in base pairs)
	// relative to the chromosome.  If End is zero, it is treated as though it
	// was set to the last position of the chromosome.
	Start, End int
}

func (region Region) String() string {
	if region.End == 0 {
		return fmt.Sprintf("%s:%d", region.Chrom, region.Start)
	}
	return fmt.Sprintf("%s:%d-%d", region.Chrom, region.Start, region.End)
}

// Bounds returns the one-based, inclusive range of the region, with an unset
// End replaced by MaximumPosition.
func (region Region) Bounds() (int, int) {
	if region.End == 0 {
		return region.Start, MaximumPosition
	}
	return region.Start, region.End
}

// ParseRegion parses regions written as "chrom", "chrom:begin" or
// "chrom:begin-end".  Thousands separators in positions are ignored.
func ParseRegion(input string) (Region, error) {
	chrom, positions, found := strings.Cut(strings.TrimSpace(input), ":")
	if chrom == "" {
		return Region{}, fmt.Errorf("missing chromosome in %q", input)
	}
	region := Region{Chrom: chrom, Start: 1}
	if !found {
		return region, nil
	}

	begin, end, ranged := strings.Cut(positions, "-")
	start, err := parsePosition(begin)
	if err != nil {
		return Region{}, fmt.Errorf("parsing start of %q: %v", input, err)
	}
	region.Start = start
	if ranged {
		if region.End, err = parsePosition(end); err != nil {
			return Region{}, fmt.Errorf("parsing end of %q: %v", input, err)
		}
		if region.End < region.Start {
			return Region{}, fmt.Errorf("end before start in %q", input)
		}
	}
	return region, nil
}

func parsePosition(input string) (int, error) {
	position, err := strconv.Atoi(strings.ReplaceAll(input, ",", ""))
	if err != nil {
		return 0, err
	}
	if position < 1 {
		return 0, fmt.Errorf("position %d is not positive", position)
	}
	return position, nil
}

// HandleChromPrefix adds or strips ChromPrefix so that chrom follows the
// naming used by a data source.
func HandleChromPrefix(expectPrefix bool, chrom string) string {
	switch hasPrefix := strings.HasPrefix(chrom, ChromPrefix); {
	case expectPrefix && !hasPrefix:
		return ChromPrefix + chrom
	case !expectPrefix && hasPrefix:
		return chrom[len(ChromPrefix):]
	}
	return chrom
}
