// Package engine содержит структурную часть движка workflow.
//
// Включает:
//   - parser.go   — парсинг WorkflowGraph из JSON
//   - validate.go — Graph Validator (действия, зависимости, циклы, параметры)
//   - dag.go      — построение DAG, топологический порядок и волны готовых узлов
//   - template.go — рендеринг Go templates в параметрах ({{ .Inputs.x }})
//
// Engine отвечает за понимание структуры графа и порядок выполнения узлов.
// Само выполнение находится в пакете executor.
package engine
