package psalter

import (
  "database/sql/driver"
  "fmt"
  "math/bits"
)

// ChapterSet is a fixed-size bitset over chapter numbers 1..150. Bit n-1
// set means chapter n is completed in the current cycle. It persists as a
// 24-byte blob so CycleState rows carry it directly.
type ChapterSet struct {
  words [3]uint64
}

func (s *ChapterSet) Set(n int) {
  if !ValidChapter(n) {
    return
  }
  i := n - 1
  s.words[i/64] |= 1 << uint(i%64)
}

func (s *ChapterSet) Clear(n int) {
  if !ValidChapter(n) {
    return
  }
  i := n - 1
  s.words[i/64] &^= 1 << uint(i%64)
}

func (s ChapterSet) Has(n int) bool {
  if !ValidChapter(n) {
    return false
  }
  i := n - 1
  return s.words[i/64]&(1<<uint(i%64)) != 0
}

func (s ChapterSet) Count() int {
  return bits.OnesCount64(s.words[0]) + bits.OnesCount64(s.words[1]) + bits.OnesCount64(s.words[2])
}

// Full reports whether every chapter of the cycle is completed.
func (s ChapterSet) Full() bool {
  return s.Count() == ChapterCount
}

func (s ChapterSet) Numbers() []int {
  out := make([]int, 0, s.Count())
  for n := 1; n <= ChapterCount; n++ {
    if s.Has(n) {
      out = append(out, n)
    }
  }
  return out
}

// Value implements driver.Valuer: little-endian words, 24 bytes.
func (s ChapterSet) Value() (driver.Value, error) {
  raw := make([]byte, 24)
  for w := 0; w < 3; w++ {
    for b := 0; b < 8; b++ {
      raw[w*8+b] = byte(s.words[w] >> uint(8*b))
    }
  }
  return raw, nil
}

// Scan implements sql.Scanner. Empty or NULL scans as the empty set.
func (s *ChapterSet) Scan(src any) error {
  *s = ChapterSet{}
  if src == nil {
    return nil
  }
  raw, ok := src.([]byte)
  if !ok {
    if str, sok := src.(string); sok {
      raw = []byte(str)
    } else {
      return fmt.Errorf("chapterset: cannot scan %T", src)
    }
  }
  if len(raw) == 0 {
    return nil
  }
  if len(raw) != 24 {
    return fmt.Errorf("chapterset: expected 24 bytes, got %d", len(raw))
  }
  for w := 0; w < 3; w++ {
    var v uint64
    for b := 7; b >= 0; b-- {
      v = v<<8 | uint64(raw[w*8+b])
    }
    s.words[w] = v
  }
  return nil
}

func (ChapterSet) GormDataType() string { return "bytes" }
