// Package textanalysis computes submission-level text metrics that do not
// depend on any LLM: VADER sentiment, word count and Flesch reading ease.
package textanalysis

import (
	"github.com/jonreiter/govader"
)

// Sentiment holds VADER polarity scores.
type Sentiment struct {
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

// Style holds simple stylometric measures.
type Style struct {
	WordCount   int     `json:"word_count"`
	Readability float64 `json:"readability"`
}

// Analyzer bundles sentiment and style analysis. It is safe for concurrent use.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// NewAnalyzer loads the VADER lexicon.
func NewAnalyzer() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// AnalyzeSentiment scores text with VADER.
func (a *Analyzer) AnalyzeSentiment(text string) Sentiment {
	scores := a.vader.PolarityScores(text)
	return Sentiment{
		Neg:      scores.Negative,
		Neu:      scores.Neutral,
		Pos:      scores.Positive,
		Compound: scores.Compound,
	}
}

// AnalyzeStyle returns word count and Flesch reading ease for text.
func (a *Analyzer) AnalyzeStyle(text string) Style {
	return AnalyzeStyle(text)
}
