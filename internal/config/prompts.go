package config

// DefaultEntitiesPrompt receives the paper title and the text sample.
const DefaultEntitiesPrompt = `You are an expert at extracting structured information from academic papers.
Extract the following from the paper below:

1. CONCEPTS: key concepts, ideas or theoretical contributions
2. METHODS: technical methods, algorithms or approaches. Include properties such as
   algorithm_type, key_components, parameters, computational_complexity,
   implementation_details, hardware_requirements, software_dependencies,
   code_availability, training_details, inference_details, advantages, limitations.
3. DATASETS: datasets used or mentioned. Include properties such as
   dataset_type, size, domain, license, download_link, usage.
4. METRICS: evaluation metrics. Include properties such as metric_type,
   reported_values, baseline_values, units, significance, experimental_setup,
   hardware_used, evaluation_protocol, comparison_methods, ablation_study_results.
5. AUTHORS: author names
6. TASKS: tasks or problem settings the paper addresses
7. RELATIONSHIPS between the extracted entities, for example
   INTRODUCES, USES_CONCEPT, USES_DATASET, EVALUATES_WITH, EVALUATES_ON,
   IMPROVES_ON, COMPARES_WITH.

Every entity has a label, a description and a properties object.
Every relationship has from_entity_label, to_entity_label, relationship_type,
confidence (0.0-1.0), rationale and evidence_span.

Return ONLY a JSON object with this structure:
{
  "concepts": [{"label": "...", "description": "...", "properties": {}}],
  "methods": [{"label": "...", "description": "...", "properties": {}}],
  "datasets": [{"label": "...", "description": "...", "properties": {}}],
  "metrics": [{"label": "...", "description": "...", "properties": {}}],
  "authors": [{"label": "...", "description": "...", "properties": {}}],
  "tasks": [{"label": "...", "description": "...", "properties": {}}],
  "relationships": [{"from_entity_label": "...", "to_entity_label": "...", "relationship_type": "...", "confidence": 0.9, "rationale": "...", "evidence_span": "..."}]
}

Title: %s

Text:
%s`

// DefaultMetadataPrompt receives the text sample.
const DefaultMetadataPrompt = `You are an expert at extracting bibliographic metadata from academic papers.
Extract title, abstract, year, venue (conference or journal), doi, arxiv_id,
authors (array of names), citation_count and keywords (array) from the text below.
Use null for anything that is not present.

Return ONLY a JSON object with the fields:
{"title": "...", "abstract": "...", "year": 2023, "venue": "...", "doi": "...", "arxiv_id": "...", "authors": ["..."], "citation_count": null, "keywords": ["..."]}

Text:
%s`

// DefaultLinkingPrompt receives both paper contexts and the known concept and method labels.
const DefaultLinkingPrompt = `You are an expert at analyzing relationships between academic papers.
Given two papers, determine if there are semantic relationships such as:

1. IMPROVES_ON: Paper 2 improves upon Paper 1's method or approach
2. EXTENDS: Paper 2 extends Paper 1's work
3. COMPARES_TO: Paper 2 compares its approach to Paper 1
4. SIMILAR_TO: the papers use similar approaches
5. REFINES_CONCEPT: Paper 2 refines a concept introduced in Paper 1

Paper 1:
%s

Paper 2:
%s

Available concepts: %s
Available methods: %s

For each relationship provide relationship_type, confidence (0.0-1.0), rationale
and evidence_concepts (labels of concepts or methods supporting it).
Return ONLY a JSON array, for example:
[
  {
    "relationship_type": "IMPROVES_ON",
    "confidence": 0.85,
    "rationale": "Paper 2 improves upon Paper 1 by introducing adaptive density control",
    "evidence_concepts": ["3D Gaussian Splatting", "Adaptive Density Control"]
  }
]
If no clear relationship exists, return [].`

// DefaultQAPrompt receives the question and the retrieved paper context.
const DefaultQAPrompt = `You are a research assistant answering questions using only the supplied papers.

Question:
%s

Relevant papers:
%s

Answer the question.`
