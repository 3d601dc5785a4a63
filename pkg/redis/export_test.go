package redis

var ClassifyScriptErr = classifyScriptErr
