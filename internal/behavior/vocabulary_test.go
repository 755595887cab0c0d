package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(HandFlapping))
	assert.True(t, IsValid(Echolalia))
	assert.False(t, IsValid(Label("not-a-behavior")))
}

func TestModalityOf(t *testing.T) {
	m, ok := ModalityOf(BodyRocking)
	assert.True(t, ok)
	assert.Equal(t, Visual, m)

	m, ok = ModalityOf(Humming)
	assert.True(t, ok)
	assert.Equal(t, Audio, m)

	_, ok = ModalityOf(Label("unknown"))
	assert.False(t, ok)
}

func TestVocabularyPartition(t *testing.T) {
	visual := VisualLabels()
	audio := AudioLabels()

	assert.Len(t, visual, 9)
	assert.Len(t, audio, 5)
	assert.Len(t, Definitions(), 14)

	seen := make(map[Label]bool)
	for _, l := range append(append([]Label{}, visual...), audio...) {
		assert.False(t, seen[l], "label %s listed in both partitions", l)
		seen[l] = true
	}
}

func TestDefinitionsNonEmpty(t *testing.T) {
	for _, d := range Definitions() {
		assert.NotEmpty(t, d.Description)
		assert.True(t, d.Modality.IsValid())
	}
}

func TestModalityIsValid(t *testing.T) {
	assert.True(t, Visual.IsValid())
	assert.True(t, Audio.IsValid())
	assert.False(t, Modality("smell").IsValid())
}
